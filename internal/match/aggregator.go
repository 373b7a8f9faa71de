package match

import (
	"github.com/ernie/shoot-or-shield/internal/combat"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Duel is one paired exchange ready for the resolver, with the roster
// indexes the results are written back to.
type Duel struct {
	A, B           combat.Turn
	AIndex, BIndex int
}

// CollectAndPair walks the roster in order and pairs every combatant with
// its matchup exactly once. A missing bot move defaults to SHOOT, a missing
// human move to IDLE. Eliminated combatants never duel.
func CollectAndPair(moves map[string]domain.Move, matchups map[string]string, roster []domain.Combatant) []Duel {
	index := make(map[string]int, len(roster))
	for i, c := range roster {
		index[c.ID] = i
	}

	consumed := make(map[string]bool, len(roster))
	var duels []Duel
	for i, a := range roster {
		if consumed[a.ID] || !a.Alive() {
			continue
		}
		oppID, ok := matchups[a.ID]
		if !ok {
			continue
		}
		j, ok := index[oppID]
		if !ok || consumed[oppID] || !roster[j].Alive() {
			continue
		}
		consumed[a.ID] = true
		consumed[oppID] = true
		duels = append(duels, Duel{
			A:      turnFor(roster[i], moves),
			B:      turnFor(roster[j], moves),
			AIndex: i,
			BIndex: j,
		})
	}
	return duels
}

func turnFor(c domain.Combatant, moves map[string]domain.Move) combat.Turn {
	m, ok := moves[c.ID]
	if !ok {
		m = domain.Move{Action: domain.ActionIdle, Intensity: 1}
		if c.IsBot {
			m.Action = domain.ActionShoot
		}
	}
	m = Validate(c, m)
	return combat.Turn{Combatant: c, Action: m.Action, Intensity: m.Intensity}
}

// Validate downgrades a move the combatant cannot afford to IDLE and
// bounds burst size by current ammo.
func Validate(c domain.Combatant, m domain.Move) domain.Move {
	switch m.Action {
	case domain.ActionShoot:
		if c.Ammo <= 0 {
			return domain.Move{Action: domain.ActionIdle, Intensity: 1, Round: m.Round}
		}
		m.Intensity = max(1, min(m.Intensity, c.Ammo))
	case domain.ActionShield:
		if c.ShieldCharges <= 0 {
			return domain.Move{Action: domain.ActionIdle, Intensity: 1, Round: m.Round}
		}
		m.Intensity = 1
	default:
		m.Action = domain.ActionIdle
		m.Intensity = 1
	}
	return m
}
