package domain

// ItemKind identifies the loadout slot an item occupies
type ItemKind string

const (
	KindGun    ItemKind = "gun"
	KindShield ItemKind = "shield"
	KindArmor  ItemKind = "armor"
)

// Valid reports whether k names a loadout slot
func (k ItemKind) Valid() bool {
	switch k {
	case KindGun, KindShield, KindArmor:
		return true
	}
	return false
}

// Ability is the closed set of item abilities
type Ability string

const (
	AbilityNone        Ability = "NONE"
	AbilityCritical    Ability = "CRITICAL"
	AbilityPiercing    Ability = "PIERCING"
	AbilityReflect     Ability = "REFLECT"
	AbilityRegenShield Ability = "REGEN_SHIELD"
	AbilityAutoRepair  Ability = "AUTO_REPAIR"
)

// Item is an immutable catalog entry. Combatants hold pointers into the
// catalog and never mutate the item itself.
type Item struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Kind           ItemKind `json:"kind"`
	Tier           int      `json:"tier"`
	Value          float64  `json:"value"`
	Cost           int      `json:"cost"`
	MatchCost      int      `json:"match_cost"`
	Description    string   `json:"description"`
	MaxCharges     int      `json:"max_charges,omitempty"`
	Ability        Ability  `json:"ability,omitempty"`
	AbilityChance  float64  `json:"ability_chance,omitempty"`
	CoordinateTime float64  `json:"coordinate_time"`
}

// Has reports whether the item carries the given ability
func (it *Item) Has(a Ability) bool {
	return it != nil && it.Ability == a
}

// CompareItems orders two items of the same kind by quality: tier first,
// then value, then coordinate time where lower wins. It returns a positive
// number when a is better than b, negative when worse and 0 when equal.
func CompareItems(a, b *Item) int {
	switch {
	case a.Tier != b.Tier:
		return a.Tier - b.Tier
	case a.Value > b.Value:
		return 1
	case a.Value < b.Value:
		return -1
	case a.CoordinateTime < b.CoordinateTime:
		return 1
	case a.CoordinateTime > b.CoordinateTime:
		return -1
	}
	return 0
}
