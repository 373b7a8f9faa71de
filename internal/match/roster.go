package match

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Team ids
const (
	Team1 = 1
	Team2 = 2
)

// FromProfile builds a fresh combatant from a persistent profile
func FromProfile(p domain.Profile) domain.Combatant {
	c := domain.Combatant{
		ID:        p.ID,
		Name:      p.Name,
		Level:     p.Level,
		Elo:       p.Elo,
		XP:        p.XP,
		Credits:   p.Credits,
		Character: catalog.Character(p.CharacterID),
		Health:    catalog.BaseHealth,
		MaxHealth: catalog.BaseHealth,
		MatchCash: catalog.MatchStartingCash,
	}
	if c.Character == nil {
		c.Character = catalog.Character(catalog.DefaultCharacter)
	}
	equipOr(&c, p.Loadout.Gun, catalog.StarterGun)
	equipOr(&c, p.Loadout.Shield, catalog.StarterShield)
	equipOr(&c, p.Loadout.Armor, catalog.StarterArmor)
	return c
}

func equipOr(c *domain.Combatant, id, fallback string) {
	it := catalog.Item(id)
	if it == nil {
		it = catalog.Item(fallback)
	}
	c.Equip(it)
}

// NewBot creates a backfill bot scaled to the given level
func NewBot(level, team int, rng *rand.Rand) domain.Combatant {
	if level < 1 {
		level = 1
	}
	var name string
	if rng != nil {
		name = catalog.BotNames[rng.IntN(len(catalog.BotNames))]
	} else {
		name = catalog.BotNames[rand.IntN(len(catalog.BotNames))]
	}
	hp := catalog.BaseHealth + float64(level-1)*catalog.BotHealthPerLevel
	c := domain.Combatant{
		ID:        "bot-" + uuid.NewString(),
		Name:      fmt.Sprintf("%s [BOT]", name),
		TeamID:    team,
		IsBot:     true,
		IsReady:   true,
		Level:     level,
		Elo:       1000 + level*100,
		Character: catalog.RandomCharacter(rng),
		Health:    hp,
		MaxHealth: hp,
		MatchCash: catalog.MatchStartingCash,
	}
	c.Equip(catalog.Item(catalog.StarterGun))
	c.Equip(catalog.Item(catalog.StarterShield))
	c.Equip(catalog.Item(catalog.StarterArmor))
	return c
}

// TeamMembers returns the combatants of one team in roster order
func TeamMembers(players []domain.Combatant, team int) []domain.Combatant {
	return lo.Filter(players, func(c domain.Combatant, _ int) bool { return c.TeamID == team })
}

// AliveCount counts living combatants on a team
func AliveCount(players []domain.Combatant, team int) int {
	return lo.CountBy(players, func(c domain.Combatant) bool { return c.TeamID == team && c.Alive() })
}

// Matchups pairs team 1 and team 2 by roster index. Unmatched combatants
// are left out.
func Matchups(players []domain.Combatant) map[string]string {
	t1 := TeamMembers(players, Team1)
	t2 := TeamMembers(players, Team2)
	m := make(map[string]string)
	for i := range min(len(t1), len(t2)) {
		m[t1[i].ID] = t2[i].ID
		m[t2[i].ID] = t1[i].ID
	}
	return m
}

// Rematch keeps every duel whose two sides are still alive and pairs the
// remaining living combatants of each team by roster order.
func Rematch(players []domain.Combatant, current map[string]string) map[string]string {
	alive := make(map[string]bool, len(players))
	for _, c := range players {
		if c.Alive() && !c.Forfeited {
			alive[c.ID] = true
		}
	}
	m := make(map[string]string)
	for a, b := range current {
		if alive[a] && alive[b] {
			m[a] = b
		}
	}
	free := func(team int) []string {
		var ids []string
		for _, c := range players {
			if c.TeamID == team && alive[c.ID] {
				if _, paired := m[c.ID]; !paired {
					ids = append(ids, c.ID)
				}
			}
		}
		return ids
	}
	f1, f2 := free(Team1), free(Team2)
	for i := range min(len(f1), len(f2)) {
		m[f1[i]] = f2[i]
		m[f2[i]] = f1[i]
	}
	return m
}

// Balanced reports whether both teams field the same non-zero count
func Balanced(players []domain.Combatant) bool {
	n1 := len(TeamMembers(players, Team1))
	n2 := len(TeamMembers(players, Team2))
	return n1 > 0 && n1 == n2 && n1+n2 == len(players)
}
