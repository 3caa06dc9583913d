package lifecycle

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/metrics"
	"treasury-exchange/pkg/types"
)

const (
	DefaultExploreInterval = 15 * time.Second
	DefaultCommitInterval  = 45 * time.Second
	DefaultDebounce        = 500 * time.Millisecond
	DefaultRequestTimeout  = 15 * time.Second
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "lifecycle").Logger()
}

// Fetcher requests quotes from the swap service
type Fetcher interface {
	FetchQuote(ctx context.Context, p types.QuoteParams) (*types.Quote, error)
}

// Config configures a controller
type Config struct {
	Step            Step
	TreasuryAccount string
	// RefreshInterval defaults per step
	RefreshInterval time.Duration
	// Debounce delays explore-step fetches after an input change.
	// Commit-step fetches are never debounced.
	Debounce       time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Metrics        *metrics.Metrics
	// OnChange receives every state change. It is called with the
	// controller locked and must not call back into it.
	OnChange func(Snapshot)
}

// Snapshot is a consistent view of the controller
type Snapshot struct {
	Step          Step
	State         State
	Inputs        Inputs
	Quote         *types.Quote
	ReceiveAmount string
	// Error is the user-facing message of the last failed fetch.
	// Only the explore step reports it.
	Error     string
	FetchedAt time.Time
	// Stale is set when the quote survived a failed refresh
	Stale bool
}

// Controller drives the quote of one wizard step
type Controller struct {
	cfg     Config
	fetcher Fetcher
	clock   clock.Clock
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	inputs    Inputs
	key       string
	state     State
	quote     *types.Quote
	receive   string
	lastErr   error
	fetchedAt time.Time
	stale     bool

	inFlight bool
	pending  bool

	debounce    *clock.Timer
	debounceGen uint64
	refresh     *clock.Timer
	refreshGen  uint64
	refreshDue  time.Time

	hidden         bool
	paused         bool
	pausedLeftover time.Duration
	closed         bool
}

// NewController creates a controller. Nothing is fetched until SetInputs.
func NewController(fetcher Fetcher, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultExploreInterval
		if cfg.Step == StepCommit {
			cfg.RefreshInterval = DefaultCommitInterval
		}
	}
	if cfg.Step == StepCommit {
		cfg.Debounce = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   cfg.Clock,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetInputs replaces the watched inputs. The previous quote, receive amount
// and error are cleared before this returns. Unchanged inputs are ignored.
func (c *Controller) SetInputs(in Inputs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := in.Key()
	if c.closed || (c.key != "" && key == c.key) {
		return
	}

	c.inputs = in
	c.key = key
	c.quote = nil
	c.receive = ""
	c.lastErr = nil
	c.fetchedAt = time.Time{}
	c.stale = false
	c.state = StateIdle

	c.stopDebounceLocked()
	c.stopRefreshLocked()
	c.pending = false
	c.paused = false

	if in.Validate() != nil {
		c.notifyLocked()
		return
	}

	if c.cfg.Debounce > 0 {
		c.debounceGen++
		gen := c.debounceGen
		c.debounce = c.clock.AfterFunc(c.cfg.Debounce, func() { c.onDebounce(gen) })
		c.notifyLocked()
		return
	}

	c.dispatchLocked()
	c.notifyLocked()
}

// Refresh fetches a new quote now, outside the regular interval
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.inputs.Validate() != nil {
		return
	}
	c.stopDebounceLocked()
	c.stopRefreshLocked()
	c.dispatchLocked()
	c.notifyLocked()
}

// SetVisible pauses auto-refresh while the user is away and resumes it with
// whatever was left of the interval.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || visible == !c.hidden {
		return
	}
	c.hidden = !visible

	if c.hidden {
		if c.refresh != nil {
			c.pausedLeftover = c.refreshDue.Sub(c.clock.Now())
			c.paused = true
			c.stopRefreshLocked()
			log.Debug().Str("step", c.cfg.Step.String()).Dur("left", c.pausedLeftover).Msg("Auto-refresh paused")
		}
		return
	}

	if !c.paused {
		return
	}
	c.paused = false
	if c.pausedLeftover <= 0 {
		c.dispatchLocked()
		c.notifyLocked()
		return
	}
	c.scheduleRefreshLocked(c.pausedLeftover)
}

// Reset tears the step down: timers stop and the inputs and quote are
// forgotten. The controller stays usable.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.stopDebounceLocked()
	c.stopRefreshLocked()
	c.inputs = Inputs{}
	c.key = ""
	c.quote = nil
	c.receive = ""
	c.lastErr = nil
	c.fetchedAt = time.Time{}
	c.stale = false
	c.pending = false
	c.paused = false
	c.state = StateIdle
	c.notifyLocked()
}

// Close stops all timers. Responses still in flight are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopDebounceLocked()
	c.stopRefreshLocked()
	c.cancel()
}

// Quote returns the current quote, if any
func (c *Controller) Quote() *types.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quote
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CanProceed reports whether the current quote may be used: it exists, has
// not expired and, on the commit step, is binding.
func (c *Controller) CanProceed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quote == nil || c.quote.Expired(c.clock.Now()) {
		return false
	}
	if c.cfg.Step == StepCommit {
		return c.quote.Committed()
	}
	return true
}

// MustRefetch reports whether the quote is missing, expired or due for its
// next refresh
func (c *Controller) MustRefetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.quote == nil || c.quote.Expired(now) {
		return true
	}
	return c.untilRefreshLocked(now) == 0
}

// SecondsUntilRefresh is the countdown shown next to the quote
func (c *Controller) SecondsUntilRefresh() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Seconds(c.untilRefreshLocked(c.clock.Now()))
}

// untilRefreshLocked follows the refresh timer, including one rescheduled
// after a failed fetch or held while hidden
func (c *Controller) untilRefreshLocked(now time.Time) time.Duration {
	switch {
	case c.paused:
		return max(c.pausedLeftover, 0)
	case c.refresh != nil:
		return Remaining(c.refreshDue, now)
	default:
		return 0
	}
}

func (c *Controller) onDebounce(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.debounceGen {
		return
	}
	c.debounce = nil
	c.dispatchLocked()
	c.notifyLocked()
}

func (c *Controller) onRefresh(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.refreshGen {
		return
	}
	c.refresh = nil
	c.dispatchLocked()
	c.notifyLocked()
}

// dispatchLocked starts a fetch for the current inputs, or marks one as
// pending if another fetch is still in flight
func (c *Controller) dispatchLocked() {
	c.state = StateFetching
	if c.inFlight {
		c.pending = true
		return
	}
	c.inFlight = true

	key := c.key
	params := types.QuoteParams{
		Source:          c.inputs.Source,
		Destination:     c.inputs.Destination,
		Amount:          c.inputs.Amount,
		SlippagePercent: c.inputs.SlippagePercent,
		TreasuryAccount: c.cfg.TreasuryAccount,
		Dry:             c.cfg.Step == StepExplore,
	}

	go c.fetch(key, params)
}

func (c *Controller) fetch(key string, params types.QuoteParams) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
	defer cancel()

	started := c.clock.Now()
	quote, err := c.fetcher.FetchQuote(ctx, params)
	elapsed := c.clock.Since(started)
	c.cfg.Metrics.ObserveFetch(c.cfg.Step.String(), elapsed, err)
	log.Debug().Str("step", c.cfg.Step.String()).Str("key", key).Dur("latency", elapsed).Bool("ok", err == nil).Msg("Quote fetched")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	if c.closed {
		return
	}

	if key != c.key {
		c.cfg.Metrics.StaleResponse(c.cfg.Step.String())
		log.Debug().Str("step", c.cfg.Step.String()).Msg("Discarding quote for outdated inputs")
		if c.pending {
			c.pending = false
			c.redispatchLocked()
		}
		return
	}

	switch {
	case err != nil:
		c.lastErr = err
		c.state = StateError
		c.stale = c.quote != nil
		log.Warn().Err(err).Str("step", c.cfg.Step.String()).Msg("Quote fetch failed")
	case quote == nil:
		c.state = StateIdle
	default:
		c.quote = quote
		c.receive = quote.AmountOutFormatted
		c.lastErr = nil
		c.stale = false
		c.fetchedAt = c.clock.Now()
		c.state = StateFresh
	}

	if c.pending {
		c.pending = false
		c.redispatchLocked()
	} else if quote != nil || err != nil {
		c.scheduleRefreshLocked(c.cfg.RefreshInterval)
	}
	c.notifyLocked()
}

// redispatchLocked runs the fetch queued behind the one that just finished,
// provided the current inputs are still valid
func (c *Controller) redispatchLocked() {
	if c.inputs.Validate() != nil {
		c.state = StateIdle
		return
	}
	c.dispatchLocked()
}

func (c *Controller) scheduleRefreshLocked(d time.Duration) {
	c.stopRefreshLocked()
	if c.hidden {
		c.paused = true
		c.pausedLeftover = d
		return
	}

	c.refreshGen++
	gen := c.refreshGen
	c.refreshDue = c.clock.Now().Add(d)
	c.refresh = c.clock.AfterFunc(d, func() { c.onRefresh(gen) })
	log.Debug().Str("step", c.cfg.Step.String()).Dur("in", d).Msg("Refresh scheduled")
}

func (c *Controller) stopRefreshLocked() {
	c.refreshGen++
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
}

func (c *Controller) stopDebounceLocked() {
	c.debounceGen++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Step:          c.cfg.Step,
		State:         c.state,
		Inputs:        c.inputs,
		Quote:         c.quote,
		ReceiveAmount: c.receive,
		FetchedAt:     c.fetchedAt,
		Stale:         c.stale,
	}
	if c.cfg.Step == StepExplore && c.lastErr != nil {
		s.Error = feedback.Describe(c.lastErr)
	}
	return s
}

func (c *Controller) notifyLocked() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(c.snapshotLocked())
	}
}
