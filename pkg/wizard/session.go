package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/history"
	"treasury-exchange/pkg/lifecycle"
	"treasury-exchange/pkg/metrics"
	"treasury-exchange/pkg/proposal"
	"treasury-exchange/pkg/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "wizard").Logger()
}

// ErrQuoteNotReady is returned when moving on without a usable quote
var ErrQuoteNotReady = errors.New("quote is not ready yet")

// Step of the wizard
type Step int

const (
	StepSelect Step = iota
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepSelect:
		return "select"
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProposalSubmitter hands a proposal to the wallet
type ProposalSubmitter interface {
	Submit(ctx context.Context, p *proposal.Proposal) (wallet.Result, error)
}

// Recorder stores submission outcomes for the activity view
type Recorder interface {
	Record(dao string, p *proposal.Proposal, res wallet.Result, submitErr error) (*history.Entry, error)
}

// Config wires a session
type Config struct {
	TreasuryAccount string
	ExploreInterval time.Duration
	CommitInterval  time.Duration
	Debounce        time.Duration
	RequestTimeout  time.Duration
	Clock           clock.Clock
	Metrics         *metrics.Metrics

	Builder   *proposal.Builder
	Submitter ProposalSubmitter
	// Recorder is optional
	Recorder Recorder

	// OnQuote receives every controller state change
	OnQuote func(lifecycle.Snapshot)
}

// Outcome of a submission
type Outcome struct {
	Proposal *proposal.Proposal
	Result   wallet.Result
	Entry    *history.Entry
	// Rejected is set when the signer declined. It is not an error.
	Rejected bool
}

// Session is one pass through the exchange wizard
type Session struct {
	cfg     Config
	store   *Store
	explore *lifecycle.Controller
	commit  *lifecycle.Controller

	mu   sync.Mutex
	step Step
}

// NewSession creates a session on the select step
func NewSession(fetcher lifecycle.Fetcher, cfg Config) *Session {
	if cfg.Builder == nil {
		cfg.Builder = proposal.NewBuilder(proposal.Config{})
	}

	s := &Session{cfg: cfg, step: StepSelect}
	s.explore = lifecycle.NewController(fetcher, lifecycle.Config{
		Step:            lifecycle.StepExplore,
		TreasuryAccount: cfg.TreasuryAccount,
		RefreshInterval: cfg.ExploreInterval,
		Debounce:        cfg.Debounce,
		RequestTimeout:  cfg.RequestTimeout,
		Clock:           cfg.Clock,
		Metrics:         cfg.Metrics,
		OnChange:        cfg.OnQuote,
	})
	s.commit = lifecycle.NewController(fetcher, lifecycle.Config{
		Step:            lifecycle.StepCommit,
		TreasuryAccount: cfg.TreasuryAccount,
		RefreshInterval: cfg.CommitInterval,
		RequestTimeout:  cfg.RequestTimeout,
		Clock:           cfg.Clock,
		Metrics:         cfg.Metrics,
		OnChange:        cfg.OnQuote,
	})
	s.store = NewStore(s.onFormChange)
	return s
}

// Store returns the form store
func (s *Session) Store() *Store {
	return s.store
}

// Explore returns the select step's controller
func (s *Session) Explore() *lifecycle.Controller {
	return s.explore
}

// Commit returns the review step's controller
func (s *Session) Commit() *lifecycle.Controller {
	return s.commit
}

// Step returns the active step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// onFormChange routes form edits to the active step only
func (s *Session) onFormChange(f Form) {
	switch s.Step() {
	case StepSelect:
		s.explore.SetInputs(f.Inputs())
	case StepReview:
		s.commit.SetInputs(f.Inputs())
	}
}

// Proceed moves from select to review and requests the binding quote
func (s *Session) Proceed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepSelect {
		return fmt.Errorf("cannot proceed from step %s", s.step)
	}

	form := s.store.Form()
	if err := form.Validate(); err != nil {
		return err
	}
	if !s.explore.CanProceed() {
		return ErrQuoteNotReady
	}

	s.explore.Reset()
	s.step = StepReview
	s.commit.SetInputs(form.Inputs())
	return nil
}

// Back returns from review to select
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepReview {
		return
	}
	s.commit.Reset()
	s.step = StepSelect
	s.explore.SetInputs(s.store.Form().Inputs())
}

// SetVisible pauses or resumes auto-refresh of both steps
func (s *Session) SetVisible(visible bool) {
	s.explore.SetVisible(visible)
	s.commit.SetVisible(visible)
}

// Submit builds the proposal from the live quote and submits it once.
// Missing quote or treasury aborts before anything is sent.
func (s *Session) Submit(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepReview {
		return nil, fmt.Errorf("cannot submit from step %s", s.step)
	}

	if !s.commit.CanProceed() {
		log.Error().Msg("Submission aborted: no committed quote")
		return nil, feedback.ErrNoCommittedQuote
	}
	s.store.attachQuote(s.commit.Quote())
	form := s.store.Form()

	p, err := s.cfg.Builder.Build(proposal.Request{
		Quote:           form.LiveQuote,
		Source:          form.Source,
		Destination:     form.Destination,
		SlippagePercent: form.SlippagePercent,
		TreasuryAccount: s.cfg.TreasuryAccount,
	})
	if err != nil {
		log.Error().Err(err).Msg("Submission aborted")
		return nil, err
	}

	kind := form.Source.Kind().String()
	res, submitErr := s.cfg.Submitter.Submit(ctx, p)
	outcome := &Outcome{Proposal: p, Result: res}

	if s.cfg.Recorder != nil {
		entry, err := s.cfg.Recorder.Record(s.cfg.TreasuryAccount, p, res, submitErr)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record proposal in history")
		}
		outcome.Entry = entry
	}

	switch {
	case submitErr == nil:
		s.cfg.Metrics.Proposal(kind, "submitted")
		log.Info().Str("kind", kind).Str("deposit_address", form.LiveQuote.DepositAddress).Msg("Exchange proposal submitted")
	case feedback.IsUserRejection(submitErr):
		s.cfg.Metrics.Proposal(kind, "rejected")
		outcome.Rejected = true
		return outcome, nil
	default:
		s.cfg.Metrics.Proposal(kind, "failed")
		log.Error().Err(submitErr).Str("kind", kind).Msg("Unexpected error submitting exchange proposal")
		return outcome, submitErr
	}

	s.commit.Reset()
	s.store.Reset()
	s.step = StepDone
	return outcome, nil
}

// Close stops both controllers
func (s *Session) Close() {
	s.explore.Close()
	s.commit.Close()
}
