package pipeline

import (
	"context"
	"time"
)

// Timer is the manual verification window.
type Timer struct {
	Seconds  int
	Interval time.Duration // one tick; defaults to a second
}

// Countdown calls tick once per interval with the seconds left, ending at
// zero. It returns ctx.Err() as soon as ctx is cancelled. A zero or negative
// Seconds returns immediately without ticking.
func (t *Timer) Countdown(ctx context.Context, tick func(remaining int)) error {
	if t.Seconds <= 0 {
		return nil
	}
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for remaining := t.Seconds; remaining > 0; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			remaining--
			if tick != nil {
				tick(remaining)
			}
		}
	}
	return nil
}
