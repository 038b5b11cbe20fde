package exam

import (
	"context"
	"fmt"
	"time"
)

// TickInterval is the countdown refresh period.
const TickInterval = time.Second

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Countdown is the remaining time of a session as shown to the candidate.
type Countdown struct {
	Remaining time.Duration `json:"remaining_ms"`
	Total     time.Duration `json:"total_ms"`
	Progress  float64       `json:"progress"`
	Warning   bool          `json:"warning"`
	Expired   bool          `json:"expired"`
}

// NewCountdown derives a countdown from the deadline rather than from elapsed ticks,
// so suspended clients catch up on their next tick.
func NewCountdown(deadline, now time.Time, total, warn time.Duration) Countdown {
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	c := Countdown{
		Remaining: left,
		Total:     total,
		Warning:   left < warn,
		Expired:   left <= 0,
	}
	denom := total
	if denom <= 0 {
		denom = time.Millisecond
	}
	c.Progress = min(1, max(0, 1-float64(left)/float64(denom)))
	return c
}

// HMS formats the remaining time as HH:MM:SS.
func (c Countdown) HMS() string {
	s := int64(c.Remaining / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// RunTicker calls fn every interval until fn returns false or ctx is done.
// Calls never overlap.
func RunTicker(ctx context.Context, interval time.Duration, fn func() bool) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !fn() {
				return
			}
		}
	}
}
