package canvas

import (
	"time"
)

// DefaultHighlightDecay is how long a component stays highlighted after an
// automated update before the flag is cleared.
const DefaultHighlightDecay = 3 * time.Second

// HighlightScheduler arranges for a component's highlight to decay after a
// fixed delay. Each update schedules an independent decay action carrying
// the highlight generation captured at schedule time; the collection ignores
// the action if the component was removed or highlighted again in the
// interim, so a stale decay can never clear a fresher highlight.
type HighlightScheduler struct {
	delay time.Duration

	// after is swappable so tests can fire decay actions synchronously.
	after func(d time.Duration, f func()) *time.Timer
}

// NewHighlightScheduler creates a scheduler with the given decay delay;
// non-positive delays fall back to DefaultHighlightDecay.
func NewHighlightScheduler(delay time.Duration) *HighlightScheduler {
	if delay <= 0 {
		delay = DefaultHighlightDecay
	}
	return &HighlightScheduler{delay: delay, after: time.AfterFunc}
}

// Delay returns the configured decay interval.
func (s *HighlightScheduler) Delay() time.Duration {
	return s.delay
}

// Schedule queues a decay action for the component with the given id in col,
// keyed to the highlight generation gen.
func (s *HighlightScheduler) Schedule(col *Collection, id string, gen uint64) {
	s.after(s.delay, func() {
		col.ClearHighlightIfCurrent(id, gen)
	})
}
