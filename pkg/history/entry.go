// Package history keeps the activity record of submitted exchange proposals.
package history

import (
	"time"

	"treasury-exchange/pkg/proposal"
)

// Status of a recorded proposal
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// Entry is one submission attempt
type Entry struct {
	ID              string            `json:"id"`
	Created         time.Time         `json:"created"`
	DAO             string            `json:"dao"`
	Status          Status            `json:"status"`
	Location        string            `json:"location,omitempty"`
	TransactionHash string            `json:"transaction_hash,omitempty"`
	Error           string            `json:"error,omitempty"`
	Proposal        proposal.Proposal `json:"proposal"`
}

// Exchange decodes the exchange details stored in the proposal description
func (e *Entry) Exchange() (proposal.Description, error) {
	return proposal.DecodeDescription(e.Proposal.Description)
}
