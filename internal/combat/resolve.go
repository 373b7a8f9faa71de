// Package combat resolves a single simultaneous exchange between two
// combatants. It is pure apart from the injected RNG.
package combat

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// RNG is the source of probability draws. *rand.Rand satisfies it.
type RNG interface {
	Float64() float64
}

// DefaultRNG draws from the global math/rand/v2 source
type DefaultRNG struct{}

func (DefaultRNG) Float64() float64 { return rand.Float64() }

// Turn is one side of an exchange: the combatant as it entered the
// decision window and the move it committed.
type Turn struct {
	Combatant domain.Combatant
	Action    domain.Action
	Intensity int
}

// Outcome is the result of resolving two turns
type Outcome struct {
	A, B domain.Combatant

	// damage taken to health, penalty included when it reached health
	DamageA, DamageB float64
	// wasted-block penalty charged to each side
	PenaltyA, PenaltyB float64
	// health damage each side inflicted on the other, reflects included
	DealtA, DealtB float64

	Events []string
}

// side is the working state of one combatant during resolution
type side struct {
	c         domain.Combatant
	action    domain.Action
	intensity int
	damage    float64
	penalty   float64
	dealt     float64
	hit       bool
}

// Resolve applies one exchange. Resources are consumed first, then each
// direction of fire is evaluated independently, then wasted-block
// penalties, then health and armor are clamped.
func Resolve(a, b Turn, rng RNG) Outcome {
	if rng == nil {
		rng = DefaultRNG{}
	}
	sa := newSide(a)
	sb := newSide(b)
	var events []string
	emit := func(e string) {
		if e != "" {
			events = append(events, e)
		}
	}

	consume(sa, rng, emit)
	consume(sb, rng, emit)

	fire(sa, sb, rng, emit)
	fire(sb, sa, rng, emit)

	penalize(sa, sb)
	penalize(sb, sa)

	settle(sa)
	settle(sb)

	repair(sa, rng, emit)
	repair(sb, rng, emit)

	recordStats(sa, sb)
	recordStats(sb, sa)

	return Outcome{
		A:        sa.c,
		B:        sb.c,
		DamageA:  sa.damage,
		DamageB:  sb.damage,
		PenaltyA: sa.penalty,
		PenaltyB: sb.penalty,
		DealtA:   sa.dealt,
		DealtB:   sb.dealt,
		Events:   events,
	}
}

func newSide(t Turn) *side {
	s := &side{c: t.Combatant, action: t.Action, intensity: t.Intensity}
	if !s.action.Valid() {
		s.action = domain.ActionIdle
	}
	if s.intensity < 1 {
		s.intensity = 1
	}
	return s
}

func consume(s *side, rng RNG, emit func(string)) {
	switch s.action {
	case domain.ActionShoot:
		s.c.Ammo = max(0, s.c.Ammo-s.intensity)
		if p := passiveOf(s.c.Character); p.saveAmmo != nil && p.saveAmmo(s.c.Character, rng) {
			s.c.Ammo = min(s.c.MaxAmmo, s.c.Ammo+s.intensity)
			emit(fmt.Sprintf("%s Ammo Saved", s.c.Name))
		}
	case domain.ActionShield:
		s.c.ShieldCharges = max(0, s.c.ShieldCharges-1)
		if e := effectOf(s.c.Shield); e.onShieldUse != nil {
			emit(e.onShieldUse(&s.c, s.c.Shield, rng))
		}
	}
}

// fire evaluates shooter's shot against defender
func fire(shooter, defender *side, rng RNG, emit func(string)) {
	if shooter.action != domain.ActionShoot {
		return
	}
	if defender.action == domain.ActionShield {
		if e := effectOf(defender.c.Shield); e.onBlock != nil {
			back, ev := e.onBlock(&shooter.c, &defender.c, defender.c.Shield, shooter.intensity, rng)
			shooter.damage += back
			defender.dealt += back
			emit(ev)
		}
		return
	}

	gun := effectOf(shooter.c.Gun)
	dmg := gunValue(&shooter.c) * float64(shooter.intensity)
	if gun.onHit != nil {
		var ev string
		dmg, ev = gun.onHit(&shooter.c, shooter.c.Gun, dmg, rng)
		emit(ev)
	}

	guard := passiveOf(defender.c.Character)
	if guard.evade != nil && guard.evade(defender.c.Character, rng) {
		dmg = 0
		emit(fmt.Sprintf("%s Dodged", defender.c.Name))
	}

	if defender.c.Armor > 0 {
		pool := defender.c.Armor
		if gun.armorPool != nil {
			pool = gun.armorPool(shooter.c.Gun, pool)
		}
		absorbed := math.Min(pool, dmg)
		defender.c.Armor -= absorbed
		dmg -= absorbed
	}

	if guard.mitigate != nil {
		dmg = guard.mitigate(defender.c.Character, dmg)
	}

	defender.damage += dmg
	shooter.dealt += dmg
	shooter.hit = dmg > 0
}

// penalize charges a wasted block when s shielded and the other side did not shoot
func penalize(s, other *side) {
	if s.action != domain.ActionShield || other.action == domain.ActionShoot {
		return
	}
	pen := math.Max(0, catalog.BaseShieldPenalty-shieldValue(&s.c))
	s.penalty += pen
	if s.c.Armor > 0 {
		s.c.Armor = math.Max(0, s.c.Armor-pen)
	} else {
		s.damage += pen
	}
}

func settle(s *side) {
	s.c.Health = math.Max(0, s.c.Health-s.damage)
	s.c.Armor = math.Max(0, s.c.Armor)
	s.c.CumulativeHealth -= s.damage
}

func recordStats(s, other *side) {
	st := &s.c.Stats
	st.DamageDealt += s.dealt
	st.DamageTaken += s.damage
	switch s.action {
	case domain.ActionShoot:
		st.ShotsFired += s.intensity
		if s.hit {
			st.ShotsHit += s.intensity
			s.c.SuccessfulActions++
		}
	case domain.ActionShield:
		if other.action == domain.ActionShoot {
			st.Blocks++
			s.c.SuccessfulActions++
		}
	}
}

func repair(s *side, rng RNG, emit func(string)) {
	if e := effectOf(s.c.ArmorItem); e.afterExchange != nil {
		emit(e.afterExchange(&s.c, s.c.ArmorItem, rng))
	}
}
