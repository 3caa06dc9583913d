package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemaining(t *testing.T) {
	scheduled := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := scheduled.Add(15 * time.Second)

	tests := []struct {
		name    string
		due     time.Time
		elapsed time.Duration
		want    time.Duration
	}{
		{"nothing scheduled", time.Time{}, 0, 0},
		{"just scheduled", due, 0, 15 * time.Second},
		{"part way", due, 4500 * time.Millisecond, 10500 * time.Millisecond},
		{"due", due, 15 * time.Second, 0},
		{"overdue", due, time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Remaining(tt.due, scheduled.Add(tt.elapsed)))
		})
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, Seconds(0))
	assert.Equal(t, 0, Seconds(-time.Second))
	assert.Equal(t, 1, Seconds(time.Millisecond))
	assert.Equal(t, 11, Seconds(10500*time.Millisecond))
	assert.Equal(t, 15, Seconds(15*time.Second))
}

func TestStartCountdownFollowsWallClock(t *testing.T) {
	clk := clock.NewMock()
	f := newBlockingFetcher()
	c := newCommitController(f, clk, nil)
	defer c.Close()

	c.SetInputs(inputs("1"))
	f.next(t).respond(quoteFor("2", clk.Now().Add(time.Hour)), nil)
	require.Eventually(t, func() bool { return c.Snapshot().State == StateFresh }, waitFor, 5*time.Millisecond)

	var last atomic.Int64
	last.Store(-1)
	stop := c.StartCountdown(func(seconds int) { last.Store(int64(seconds)) })

	clk.Add(time.Second)
	require.Eventually(t, func() bool { return last.Load() == 44 }, waitFor, 5*time.Millisecond)

	// a long stall still reports the true remaining time
	clk.Add(10 * time.Second)
	require.Eventually(t, func() bool { return last.Load() == 34 }, waitFor, 5*time.Millisecond)

	stop()
	stop()
	last.Store(-1)
	clk.Add(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(-1), last.Load())
}
