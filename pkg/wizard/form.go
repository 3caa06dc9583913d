// Package wizard holds the exchange form and walks it through its steps:
// select (dry-run quotes), review (binding quote) and submit.
package wizard

import (
	"sync"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/lifecycle"
	"treasury-exchange/pkg/types"
)

// DefaultSlippage is the preset used when the user picks none
var DefaultSlippage = decimal.RequireFromString("0.5")

// Form is the exchange form. It is only changed through a Store.
type Form struct {
	Source          types.Asset
	Destination     types.Asset
	Amount          string
	SlippagePercent decimal.Decimal
	// LiveQuote is the binding quote attached at submission
	LiveQuote *types.Quote
}

// Inputs returns the values a quote depends on
func (f Form) Inputs() lifecycle.Inputs {
	return lifecycle.Inputs{
		Source:          f.Source,
		Destination:     f.Destination,
		Amount:          f.Amount,
		SlippagePercent: f.SlippagePercent,
	}
}

// Validate checks the form before quoting or submitting
func (f Form) Validate() error {
	return f.Inputs().Validate()
}

// Store owns the form for the lifetime of a wizard session
type Store struct {
	mu       sync.Mutex
	form     Form
	onChange func(Form)
}

// NewStore creates a store seeded with the default slippage
func NewStore(onChange func(Form)) *Store {
	return &Store{
		form:     Form{SlippagePercent: DefaultSlippage},
		onChange: onChange,
	}
}

// Form returns a copy of the current form
func (s *Store) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Store) update(fn func(f *Form)) {
	s.mu.Lock()
	fn(&s.form)
	f := s.form
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(f)
	}
}

func (s *Store) SetSource(a types.Asset) {
	s.update(func(f *Form) { f.Source = a; f.LiveQuote = nil })
}

func (s *Store) SetDestination(a types.Asset) {
	s.update(func(f *Form) { f.Destination = a; f.LiveQuote = nil })
}

func (s *Store) SetAmount(amount string) {
	s.update(func(f *Form) { f.Amount = amount; f.LiveQuote = nil })
}

func (s *Store) SetSlippage(percent decimal.Decimal) {
	s.update(func(f *Form) { f.SlippagePercent = percent; f.LiveQuote = nil })
}

// Swap exchanges source and destination
func (s *Store) Swap() {
	s.update(func(f *Form) {
		f.Source, f.Destination = f.Destination, f.Source
		f.LiveQuote = nil
	})
}

// attachQuote stores the binding quote without notifying watchers
func (s *Store) attachQuote(q *types.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.LiveQuote = q
}

// Reset discards the form
func (s *Store) Reset() {
	s.mu.Lock()
	s.form = Form{SlippagePercent: DefaultSlippage}
	s.mu.Unlock()
}
