// Package lifecycle keeps a quote current for one wizard step: it fetches on
// input change, refreshes on an interval and discards out-of-date responses.
package lifecycle

import (
	"strings"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

// Step identifies which wizard step a controller serves
type Step int

const (
	// StepExplore fetches dry-run quotes while the user edits the form
	StepExplore Step = iota
	// StepCommit fetches the binding quote shown on the review step
	StepCommit
)

func (s Step) String() string {
	if s == StepCommit {
		return "commit"
	}
	return "explore"
}

// State of the controller's quote
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFresh
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Field names used in input errors
const (
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldAmount      = "amount"
	FieldSlippage    = "slippage"
)

// Inputs are the form values a quote depends on
type Inputs struct {
	Source          types.Asset
	Destination     types.Asset
	Amount          string
	SlippagePercent decimal.Decimal
}

// Key identifies the inputs a fetch was made for
func (in Inputs) Key() string {
	return strings.Join([]string{
		in.Source.Key(),
		in.Destination.Key(),
		strings.TrimSpace(in.Amount),
		in.SlippagePercent.String(),
	}, "|")
}

// Complete returns true once both assets and an amount are chosen
func (in Inputs) Complete() bool {
	return !in.Source.IsZero() && !in.Destination.IsZero() && strings.TrimSpace(in.Amount) != ""
}

// Validate checks the inputs before any network call
func (in Inputs) Validate() error {
	if in.Source.IsZero() {
		return feedback.Input(FieldSource, feedback.ErrMissingAsset)
	}
	if in.Destination.IsZero() {
		return feedback.Input(FieldDestination, feedback.ErrMissingAsset)
	}
	if in.Source.Same(in.Destination) {
		return feedback.Input(FieldDestination, feedback.ErrSameAsset)
	}
	if _, err := units.ParsePositive(in.Amount); err != nil {
		return feedback.Input(FieldAmount, err)
	}
	if err := units.ValidateSlippage(in.SlippagePercent); err != nil {
		return feedback.Input(FieldSlippage, err)
	}
	return nil
}
