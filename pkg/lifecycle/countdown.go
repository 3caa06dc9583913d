package lifecycle

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Remaining returns how long until due, never negative.
// It is derived from the wall clock so a late tick cannot make it drift.
func Remaining(due, now time.Time) time.Duration {
	if due.IsZero() {
		return 0
	}
	left := due.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Seconds rounds d up to whole seconds
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// StartCountdown calls tick once per second with the seconds left until the
// next refresh. The returned func stops the ticker and may be called twice.
func (c *Controller) StartCountdown(tick func(seconds int)) (stop func()) {
	return startTicker(c.clock, time.Second, func() {
		tick(c.SecondsUntilRefresh())
	})
}

func startTicker(clk clock.Clock, every time.Duration, fn func()) func() {
	ticker := clk.Ticker(every)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
