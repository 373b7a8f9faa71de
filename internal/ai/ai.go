// Package ai supplies move decisions for bot combatants
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Decision is a provider's chosen move plus flavour text
type Decision struct {
	Action    domain.Action `json:"action"`
	Intensity int           `json:"intensity"`
	Rationale string        `json:"rationale,omitempty"`
	Taunt     string        `json:"taunt,omitempty"`
}

// Provider picks a move for self against opponent given recent history
type Provider interface {
	Move(ctx context.Context, self, opponent domain.Combatant, history []domain.TurnResult) (Decision, error)
}

// Clamp re-validates a decision against the combatant's resources:
// unavailable actions become IDLE and burst size is bounded by ammo.
func Clamp(d Decision, self domain.Combatant) Decision {
	switch d.Action {
	case domain.ActionShoot:
		if self.Ammo <= 0 {
			d.Action = domain.ActionIdle
			d.Intensity = 1
			d.Rationale += " (forced idle: out of ammo)"
			return d
		}
		d.Intensity = max(1, min(d.Intensity, self.Ammo))
	case domain.ActionShield:
		d.Intensity = 1
		if self.ShieldCharges <= 0 {
			d.Action = domain.ActionIdle
			d.Rationale += " (forced idle: shield depleted)"
		}
	default:
		d.Action = domain.ActionIdle
		d.Intensity = 1
	}
	return d
}

// DefaultTimeout bounds a primary provider call
const DefaultTimeout = 3 * time.Second

// Guarded wraps a primary provider with a deadline and a fallback. It
// never returns an error and always returns a clamped decision.
type Guarded struct {
	Primary  Provider
	Fallback Provider
	Timeout  time.Duration
}

// NewGuarded wraps primary with the heuristic as fallback
func NewGuarded(primary Provider, timeout time.Duration) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{Primary: primary, Fallback: NewHeuristic(nil), Timeout: timeout}
}

func (g *Guarded) Move(ctx context.Context, self, opponent domain.Combatant, history []domain.TurnResult) (Decision, error) {
	if g.Primary != nil {
		d, err := g.callPrimary(ctx, self, opponent, history)
		if err == nil {
			return Clamp(d, self), nil
		}
		log.Printf("Warning: AI provider failed for %s, using fallback: %v", self.Name, err)
	}
	fallback := g.Fallback
	if fallback == nil {
		fallback = NewHeuristic(nil)
	}
	d, err := fallback.Move(ctx, self, opponent, history)
	if err != nil {
		d = Decision{Action: domain.ActionIdle, Intensity: 1}
	}
	return Clamp(d, self), nil
}

func (g *Guarded) callPrimary(ctx context.Context, self, opponent domain.Combatant, history []domain.TurnResult) (Decision, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		d   Decision
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		d, err := g.Primary.Move(ctx, self, opponent, history)
		ch <- reply{d, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Decision{}, r.err
		}
		if !r.d.Action.Valid() {
			return Decision{}, fmt.Errorf("invalid action %q", r.d.Action)
		}
		return r.d, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Decision{}, fmt.Errorf("provider timed out after %v", timeout)
		}
		return Decision{}, ctx.Err()
	}
}
