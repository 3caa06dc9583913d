package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/types"
)

const waitFor = time.Second

var (
	usdc = types.Asset{Address: "usdc.near", Symbol: "USDC", Decimals: 6, Network: types.NearNetwork, Residency: types.ResidencyChain}
	usdt = types.Asset{Address: "usdt.near", Symbol: "USDT", Decimals: 6, Network: types.NearNetwork, Residency: types.ResidencyChain}
)

func inputs(amount string) Inputs {
	return Inputs{
		Source:          usdc,
		Destination:     usdt,
		Amount:          amount,
		SlippagePercent: decimal.RequireFromString("0.5"),
	}
}

// pendingCall is a fetch waiting for the test to answer it
type pendingCall struct {
	params types.QuoteParams
	reply  chan fetchResult
}

type fetchResult struct {
	quote *types.Quote
	err   error
}

func (p *pendingCall) respond(q *types.Quote, err error) {
	p.reply <- fetchResult{quote: q, err: err}
}

// blockingFetcher hands every call to the test and blocks until answered
type blockingFetcher struct {
	calls chan *pendingCall
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{calls: make(chan *pendingCall, 16)}
}

func (f *blockingFetcher) FetchQuote(ctx context.Context, p types.QuoteParams) (*types.Quote, error) {
	call := &pendingCall{params: p, reply: make(chan fetchResult, 1)}
	f.calls <- call
	select {
	case r := <-call.reply:
		return r.quote, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *blockingFetcher) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(waitFor):
		t.Fatal("expected a quote fetch")
		return nil
	}
}

func (f *blockingFetcher) none(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected quote fetch for amount %s", call.params.Amount)
	case <-time.After(50 * time.Millisecond):
	}
}

func quoteFor(amountOut string, deadline time.Time) *types.Quote {
	return &types.Quote{
		AmountIn:           "1000000",
		AmountOut:          amountOut,
		AmountOutFormatted: amountOut,
		DepositAddress:     "deposit.near",
		Deadline:           deadline,
		Signature:          "ed25519:sig",
	}
}

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snapshots...)
}

func newCommitController(f Fetcher, clk clock.Clock, onChange func(Snapshot)) *Controller {
	return NewController(f, Config{
		Step:            StepCommit,
		TreasuryAccount: "treasury.near",
		Clock:           clk,
		OnChange:        onChange,
	})
}

func TestCommitFetchesImmediately(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	call := f.next(t)
	assert.False(t, call.params.Dry)
	assert.Equal(t, "treasury.near", call.params.TreasuryAccount)
	assert.Equal(t, StateFetching, c.Snapshot().State)

	call.respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, "2", s.ReceiveAmount)
	assert.True(t, c.CanProceed())
	assert.False(t, c.MustRefetch())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	first := f.next(t)

	c.SetInputs(inputs("2"))
	s := c.Snapshot()
	assert.Nil(t, s.Quote)
	assert.Empty(t, s.ReceiveAmount)

	// only one fetch in flight at a time
	f.none(t)

	first.respond(quoteFor("111", clk.Now().Add(time.Hour)), nil)
	second := f.next(t)
	assert.Equal(t, "2", second.params.Amount)

	s = c.Snapshot()
	assert.Nil(t, s.Quote, "response for old inputs must not be shown")
	assert.Equal(t, StateFetching, s.State)

	second.respond(quoteFor("222", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "222", c.Snapshot().ReceiveAmount)
}

func TestInputChangeClearsSynchronously(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	rec := &recorder{}
	c := newCommitController(f, clk, rec.record)
	defer c.Close()

	c.SetInputs(inputs("1"))
	f.next(t).respond(nil, errors.New("amount is too low"))
	require.Eventually(t, func() bool { return c.Snapshot().State == StateError }, waitFor, 5*time.Millisecond)

	c.SetInputs(inputs("5"))

	snaps := rec.all()
	last := snaps[len(snaps)-1]
	assert.Equal(t, "5", last.Inputs.Amount)
	assert.Nil(t, last.Quote)
	assert.Empty(t, last.ReceiveAmount)
	assert.Empty(t, last.Error)
}

func TestExploreDebounceResetsOnEveryChange(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := NewController(f, Config{
		Step:            StepExplore,
		TreasuryAccount: "treasury.near",
		Debounce:        500 * time.Millisecond,
		Clock:           clk,
	})
	defer c.Close()

	c.SetInputs(inputs("1"))
	clk.Add(300 * time.Millisecond)
	c.SetInputs(inputs("12"))
	clk.Add(300 * time.Millisecond)
	f.none(t)

	clk.Add(200 * time.Millisecond)
	call := f.next(t)
	assert.Equal(t, "12", call.params.Amount)
	assert.True(t, call.params.Dry)
	f.none(t)
}

func TestInvalidInputsDoNotFetch(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	same := inputs("1")
	same.Destination = same.Source
	c.SetInputs(same)
	f.none(t)

	zero := inputs("0")
	c.SetInputs(zero)
	f.none(t)

	assert.Equal(t, StateIdle, c.Snapshot().State)
}

func TestQueuedFetchSkipsInvalidInputs(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	first := f.next(t)

	// queued behind the first fetch, then replaced by an invalid amount
	c.SetInputs(inputs("2"))
	c.SetInputs(inputs("0"))

	first.respond(quoteFor("111", clk.Now().Add(time.Hour)), nil)
	f.none(t)

	s := c.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.Quote)

	c.SetInputs(inputs("3"))
	assert.Equal(t, "3", f.next(t).params.Amount)
}

func TestQueuedFetchWaitsForDebounce(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := NewController(f, Config{
		Step:            StepExplore,
		TreasuryAccount: "treasury.near",
		Debounce:        500 * time.Millisecond,
		Clock:           clk,
	})
	defer c.Close()

	c.SetInputs(inputs("1"))
	clk.Add(500 * time.Millisecond)
	first := f.next(t)

	c.SetInputs(inputs("2"))
	clk.Add(500 * time.Millisecond)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFetching }, waitFor, 5*time.Millisecond)

	c.SetInputs(inputs("3"))
	first.respond(quoteFor("111", clk.Now().Add(time.Hour)), nil)
	f.none(t)

	clk.Add(300 * time.Millisecond)
	f.none(t)
	clk.Add(200 * time.Millisecond)
	assert.Equal(t, "3", f.next(t).params.Amount)
	f.none(t)
}

func TestCountdownFollowsRescheduledRefresh(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := NewController(f, Config{
		Step:            StepCommit,
		TreasuryAccount: "treasury.near",
		RefreshInterval: 10 * time.Second,
		Clock:           clk,
	})
	defer c.Close()

	c.SetInputs(inputs("1"))
	f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	clk.Add(10 * time.Second)
	f.next(t).respond(nil, errors.New("network timeout"))
	require.Eventually(t, func() bool { return c.Snapshot().State == StateError }, waitFor, 5*time.Millisecond)

	assert.Equal(t, 10, c.SecondsUntilRefresh())
	assert.False(t, c.MustRefetch())

	clk.Add(4 * time.Second)
	assert.Equal(t, 6, c.SecondsUntilRefresh())
}

func TestAutoRefresh(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	clk.Add(44 * time.Second)
	f.none(t)
	assert.Equal(t, 1, c.SecondsUntilRefresh())

	clk.Add(time.Second)
	call := f.next(t)
	assert.Equal(t, "1", call.params.Amount)
	// the previous quote stays visible while refreshing
	assert.Equal(t, "2", c.Snapshot().ReceiveAmount)
}

func TestFailedRefreshKeepsQuote(t *testing.T) {
	for _, step := range []Step{StepExplore, StepCommit} {
		t.Run(step.String(), func(t *testing.T) {
			clk := clock.NewMock()
			f := newBlockingFetcher()
			c := NewController(f, Config{
				Step:            step,
				TreasuryAccount: "treasury.near",
				RefreshInterval: 10 * time.Second,
				Clock:           clk,
			})
			defer c.Close()

			c.SetInputs(inputs("1"))
			f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
			require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

			clk.Add(10 * time.Second)
			f.next(t).respond(nil, errors.New("no route found"))
			require.Eventually(t, func() bool { return c.Snapshot().State == StateError }, waitFor, 5*time.Millisecond)

			s := c.Snapshot()
			require.NotNil(t, s.Quote)
			assert.Equal(t, "2", s.ReceiveAmount)
			assert.True(t, s.Stale)
			if step == StepExplore {
				assert.Equal(t, feedback.MsgNoRoute, s.Error)
			} else {
				assert.Empty(t, s.Error)
			}

			// a failed refresh is retried on the next interval
			clk.Add(10 * time.Second)
			f.next(t)
		})
	}
}

func TestRefreshPausesWhileHidden(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	clk.Add(20 * time.Second)
	c.SetVisible(false)
	clk.Add(2 * time.Minute)
	f.none(t)

	assert.Equal(t, 25, c.SecondsUntilRefresh(), "countdown holds while hidden")
	assert.False(t, c.MustRefetch())

	c.SetVisible(true)
	assert.Equal(t, 25, c.SecondsUntilRefresh())
	clk.Add(24 * time.Second)
	f.none(t)
	assert.Equal(t, 1, c.SecondsUntilRefresh())
	clk.Add(time.Second)
	f.next(t)
}

func TestCanProceedRequiresLiveQuote(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	assert.False(t, c.CanProceed())
	assert.True(t, c.MustRefetch())

	c.SetInputs(inputs("1"))
	dry := quoteFor("2", clk.Now().Add(time.Hour))
	dry.Dry = true
	f.next(t).respond(dry, nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)
	assert.False(t, c.CanProceed(), "dry quote cannot be committed")

	c.Refresh()
	f.next(t).respond(quoteFor("2", clk.Now().Add(30*time.Second)), nil)
	require.Eventually(t, func() bool { return !c.Snapshot().Quote.Dry }, waitFor, 5*time.Millisecond)
	assert.True(t, c.CanProceed())

	c.SetVisible(false)
	clk.Add(30 * time.Second)
	assert.False(t, c.CanProceed(), "expired quote")
	assert.True(t, c.MustRefetch())
}

func TestCloseStopsTimers(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)

	c.SetInputs(inputs("1"))
	f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	c.Close()
	clk.Add(time.Hour)
	f.none(t)
}

func TestResetDropsQuoteAndInFlightResponse(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	call := f.next(t)
	c.Reset()

	call.respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	f.none(t)
	s := c.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.Quote)

	// the same inputs fetch again after a reset
	c.SetInputs(inputs("1"))
	f.next(t)
}
