package catalog

import (
	"math/rand/v2"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// DefaultCharacter is used when a profile never picked a class
const DefaultCharacter = "c1"

var characters = []domain.Character{
	{ID: "c1", Name: "Spectre", Role: "Stealth", Description: "A ghost in the machine. Hard to hit.",
		Passive: domain.Passive{Name: "Phantom Step", Description: "15% chance to dodge incoming damage completely.", Type: domain.PassiveDodge, Value: 0.15}},
	{ID: "c2", Name: "Vanguard", Role: "Heavy", Description: "Immovable object. Damage mitigation.",
		Passive: domain.Passive{Name: "Iron Plating", Description: "Reduces incoming damage by 15%.", Type: domain.PassiveMitigation, Value: 0.15}},
	{ID: "c3", Name: "Neon", Role: "Tech", Description: "Hacks reality. Resource efficiency.",
		Passive: domain.Passive{Name: "Overclock", Description: "20% chance to not consume ammo when firing.", Type: domain.PassiveAmmoSaver, Value: 0.20}},
}

// Character returns the class for id, or nil when unknown
func Character(id string) *domain.Character {
	for i := range characters {
		if characters[i].ID == id {
			return &characters[i]
		}
	}
	return nil
}

// Characters returns every playable class
func Characters() []*domain.Character {
	out := make([]*domain.Character, len(characters))
	for i := range characters {
		out[i] = &characters[i]
	}
	return out
}

// RandomCharacter picks a class for a bot
func RandomCharacter(r *rand.Rand) *domain.Character {
	if r == nil {
		return &characters[rand.IntN(len(characters))]
	}
	return &characters[r.IntN(len(characters))]
}
