package ai

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Heuristic picks uniformly among the moves the bot can afford and
// occasionally fires a burst.
type Heuristic struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristic creates a heuristic provider; a nil rng uses a random seed
func NewHeuristic(rng *rand.Rand) *Heuristic {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Heuristic{rng: rng}
}

// burstChance is the probability of a burst when two or more rounds remain
const burstChance = 0.3

func (h *Heuristic) Move(_ context.Context, self, _ domain.Combatant, _ []domain.TurnResult) (Decision, error) {
	available := []domain.Action{domain.ActionIdle}
	if self.Ammo > 0 {
		available = append(available, domain.ActionShoot)
	}
	if self.ShieldCharges > 0 {
		available = append(available, domain.ActionShield)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	d := Decision{
		Action:    available[h.rng.IntN(len(available))],
		Intensity: 1,
		Rationale: "The simulation runs on basic heuristics.",
		Taunt:     "...",
	}
	if d.Action == domain.ActionShoot && self.Ammo >= 2 && h.rng.Float64() < burstChance {
		d.Intensity = min(3, self.Ammo)
	}
	return d, nil
}
