package match

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Run drives the engine's deadline on its clock until ctx is cancelled or
// the engine is closed. Exactly one Run should be active per engine.
func (e *Engine) Run(ctx context.Context) {
	for {
		deadline, gen, ok := e.NextDeadline()

		var timer clockwork.Timer
		var fired <-chan time.Time
		if ok {
			timer = e.clock.NewTimer(deadline.Sub(e.clock.Now()))
			fired = timer.Chan()
		}

		select {
		case <-ctx.Done():
			stop(timer)
			return
		case <-e.done:
			stop(timer)
			return
		case <-e.wake:
			// deadline replaced; re-arm
			stop(timer)
		case <-fired:
			e.fire(gen)
		}
	}
}

func stop(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}
