package catalog

import (
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Starter item ids every profile owns
const (
	StarterGun    = "g1"
	StarterShield = "s1"
	StarterArmor  = "a1"
)

var guns = []domain.Item{
	{ID: "g1", Name: "G18", Kind: domain.KindGun, Tier: 1, Value: 25, Cost: 0, MatchCost: 0, MaxCharges: 99,
		Description: "25 DMG. Standard issue.", Ability: domain.AbilityNone, CoordinateTime: 1.5},
	{ID: "g2", Name: "Pulse Rifle", Kind: domain.KindGun, Tier: 1, Value: 30, Cost: 200, MatchCost: 600, MaxCharges: 12,
		Description: "30 DMG. 15% crit chance.", Ability: domain.AbilityCritical, AbilityChance: 0.15, CoordinateTime: 1.2},
	{ID: "g3", Name: "Plasma Blaster", Kind: domain.KindGun, Tier: 2, Value: 35, Cost: 500, MatchCost: 1200, MaxCharges: 8,
		Description: "35 DMG. Ignores 30% armor.", Ability: domain.AbilityPiercing, AbilityChance: 0.30, CoordinateTime: 1.0},
	{ID: "g4", Name: "Widowmaker", Kind: domain.KindGun, Tier: 2, Value: 45, Cost: 800, MatchCost: 1800, MaxCharges: 5,
		Description: "45 DMG. 30% crit chance.", Ability: domain.AbilityCritical, AbilityChance: 0.30, CoordinateTime: 0.8},
	{ID: "g5", Name: "Omega Railgun", Kind: domain.KindGun, Tier: 3, Value: 55, Cost: 2000, MatchCost: 2500, MaxCharges: 4,
		Description: "55 DMG. Ignores 50% armor.", Ability: domain.AbilityPiercing, AbilityChance: 0.5, CoordinateTime: 0.4},
}

var shields = []domain.Item{
	{ID: "s1", Name: "Lid", Kind: domain.KindShield, Tier: 1, Value: 0, Cost: 0, MatchCost: 0, MaxCharges: 3,
		Description: "15 penalty damage.", Ability: domain.AbilityNone, CoordinateTime: 1.2},
	{ID: "s2", Name: "Riot Shield", Kind: domain.KindShield, Tier: 1, Value: 5, Cost: 200, MatchCost: 400, MaxCharges: 4,
		Description: "10 penalty. 20% reflect.", Ability: domain.AbilityReflect, AbilityChance: 0.2, CoordinateTime: 1.0},
	{ID: "s3", Name: "Energy Barrier", Kind: domain.KindShield, Tier: 2, Value: 8, Cost: 500, MatchCost: 1000, MaxCharges: 6,
		Description: "7 penalty. 10% regen.", Ability: domain.AbilityRegenShield, AbilityChance: 0.1, CoordinateTime: 0.8},
	{ID: "s4", Name: "Aegis System", Kind: domain.KindShield, Tier: 2, Value: 12, Cost: 800, MatchCost: 1500, MaxCharges: 7,
		Description: "3 penalty. 40% reflect.", Ability: domain.AbilityReflect, AbilityChance: 0.4, CoordinateTime: 0.6},
	{ID: "s5", Name: "Void Matrix", Kind: domain.KindShield, Tier: 3, Value: 15, Cost: 2000, MatchCost: 2200, MaxCharges: 10,
		Description: "0 penalty. 50% reflect.", Ability: domain.AbilityReflect, AbilityChance: 0.5, CoordinateTime: 0.2},
}

var armors = []domain.Item{
	{ID: "a1", Name: "Leather Jacket", Kind: domain.KindArmor, Tier: 1, Value: 0, Cost: 0, MatchCost: 0,
		Description: "No protection.", Ability: domain.AbilityNone, CoordinateTime: 1.0},
	{ID: "a2", Name: "Vest Lvl 1", Kind: domain.KindArmor, Tier: 1, Value: 50, Cost: 200, MatchCost: 400,
		Description: "50 armor HP.", Ability: domain.AbilityNone, CoordinateTime: 0.9},
	{ID: "a3", Name: "Vest Lvl 2", Kind: domain.KindArmor, Tier: 2, Value: 100, Cost: 600, MatchCost: 800,
		Description: "100 armor HP.", Ability: domain.AbilityNone, CoordinateTime: 0.7},
	{ID: "a4", Name: "Nano-Suit", Kind: domain.KindArmor, Tier: 3, Value: 150, Cost: 1500, MatchCost: 1200,
		Description: "150 armor HP with auto repair.", Ability: domain.AbilityAutoRepair, AbilityChance: 0.1, CoordinateTime: 0.5},
}

var byID = func() map[string]*domain.Item {
	m := make(map[string]*domain.Item)
	for _, list := range [][]domain.Item{guns, shields, armors} {
		for i := range list {
			m[list[i].ID] = &list[i]
		}
	}
	return m
}()

// Item returns the catalog entry for id, or nil when unknown
func Item(id string) *domain.Item {
	return byID[id]
}

// Items returns every catalog entry of one kind in catalog order
func Items(kind domain.ItemKind) []*domain.Item {
	var list []domain.Item
	switch kind {
	case domain.KindGun:
		list = guns
	case domain.KindShield:
		list = shields
	case domain.KindArmor:
		list = armors
	}
	out := make([]*domain.Item, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}

// All returns every item in the catalog, guns first
func All() []*domain.Item {
	out := Items(domain.KindGun)
	out = append(out, Items(domain.KindShield)...)
	return append(out, Items(domain.KindArmor)...)
}

// Starters returns the starter inventory ids
func Starters() []string {
	return []string{StarterGun, StarterShield, StarterArmor}
}
