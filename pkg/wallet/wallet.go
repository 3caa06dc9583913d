// Package wallet hands finished proposals to the treasury's DAO contract.
// Signing happens outside this program: a Submitter either writes the
// add_proposal call for an external signer or prints it.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/proposal"
)

const (
	MethodAddProposal = "add_proposal"
	AddProposalGas    = "200000000000000" // 200 Tgas
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "wallet").Logger()
}

// Call is a function call transaction awaiting a signature
type Call struct {
	ReceiverID string          `json:"receiver_id"`
	MethodName string          `json:"method_name"`
	Args       json.RawMessage `json:"args"`
	Deposit    string          `json:"deposit"`
	Gas        string          `json:"gas"`
}

type addProposalArgs struct {
	Proposal *proposal.Proposal `json:"proposal"`
}

// AddProposalCall wraps p in the DAO's add_proposal call with bond attached
func AddProposalCall(dao string, p *proposal.Proposal, bond string) (Call, error) {
	if dao == "" {
		return Call{}, feedback.ErrNoTreasuryAccount
	}
	if p == nil {
		return Call{}, errors.New("proposal is required")
	}
	if err := validateYocto(bond); err != nil {
		return Call{}, fmt.Errorf("invalid proposal bond: %w", err)
	}

	args, err := json.Marshal(addProposalArgs{Proposal: p})
	if err != nil {
		return Call{}, fmt.Errorf("failed to encode proposal: %w", err)
	}

	return Call{
		ReceiverID: dao,
		MethodName: MethodAddProposal,
		Args:       args,
		Deposit:    bond,
		Gas:        AddProposalGas,
	}, nil
}

func validateYocto(amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return fmt.Errorf("%q is not a whole yoctoNEAR amount", amount)
	}
	return nil
}

// Result describes where a submitted call went
type Result struct {
	Location        string `json:"location,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// Submitter delivers a call for signing
type Submitter interface {
	Submit(ctx context.Context, call Call) (Result, error)
}

// PolicyLookup supplies the bond the DAO requires for a new proposal
type PolicyLookup interface {
	ProposalBond(ctx context.Context, dao string) (string, error)
}

// StaticPolicy returns a configured bond
type StaticPolicy struct {
	Bond string
}

// ProposalBond implements PolicyLookup
func (s StaticPolicy) ProposalBond(ctx context.Context, dao string) (string, error) {
	if s.Bond == "" {
		return "0", nil
	}
	return s.Bond, nil
}

// Manager submits proposals on behalf of one treasury
type Manager struct {
	dao       string
	policy    PolicyLookup
	submitter Submitter
}

// NewManager creates a new submission manager
func NewManager(dao string, policy PolicyLookup, submitter Submitter) *Manager {
	return &Manager{
		dao:       dao,
		policy:    policy,
		submitter: submitter,
	}
}

// Submit sends p exactly once. A declined signature is reported as
// feedback.ErrUserRejected.
func (m *Manager) Submit(ctx context.Context, p *proposal.Proposal) (Result, error) {
	bond, err := m.policy.ProposalBond(ctx, m.dao)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up proposal bond: %w", err)
	}

	call, err := AddProposalCall(m.dao, p, bond)
	if err != nil {
		return Result{}, err
	}

	res, err := m.submitter.Submit(ctx, call)
	if err != nil {
		if feedback.IsUserRejection(err) {
			log.Info().Str("dao", m.dao).Msg("Proposal submission rejected by user")
			return Result{}, fmt.Errorf("%w: %v", feedback.ErrUserRejected, err)
		}
		log.Error().Err(err).Str("dao", m.dao).Msg("Proposal submission failed")
		return Result{}, fmt.Errorf("failed to submit proposal: %w", err)
	}

	log.Info().Str("dao", m.dao).Str("location", res.Location).Msg("Proposal submitted")
	return res, nil
}
