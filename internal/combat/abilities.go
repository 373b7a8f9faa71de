package combat

import (
	"fmt"
	"math"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// AutoRepairFraction is the share of an armor item's value restored when
// AUTO_REPAIR triggers.
const AutoRepairFraction = 0.1

// effect holds the hooks one ability contributes to an exchange. Every
// item ability is evaluated through the effects table below; a nil hook
// means the ability does not act at that point.
type effect struct {
	// shield charge spent
	onShieldUse func(self *domain.Combatant, it *domain.Item, rng RNG) string
	// shot absorbed by the shield; returns damage sent back to the shooter
	onBlock func(shooter, defender *domain.Combatant, it *domain.Item, intensity int, rng RNG) (float64, string)
	// shot about to land; returns the adjusted damage
	onHit func(shooter *domain.Combatant, it *domain.Item, dmg float64, rng RNG) (float64, string)
	// armor pool the shot is measured against
	armorPool func(it *domain.Item, armor float64) float64
	// after health and armor are settled
	afterExchange func(self *domain.Combatant, it *domain.Item, rng RNG) string
}

var effects = map[domain.Ability]effect{
	domain.AbilityNone: {},
	domain.AbilityCritical: {
		onHit: func(shooter *domain.Combatant, it *domain.Item, dmg float64, rng RNG) (float64, string) {
			if !trigger(rng, it.AbilityChance) {
				return dmg, ""
			}
			return dmg * catalog.CriticalFactor, fmt.Sprintf("Critical Hit by %s", shooter.Name)
		},
	},
	domain.AbilityPiercing: {
		armorPool: func(it *domain.Item, armor float64) float64 {
			return armor * (1 - it.AbilityChance)
		},
	},
	domain.AbilityReflect: {
		onBlock: func(shooter, defender *domain.Combatant, it *domain.Item, intensity int, rng RNG) (float64, string) {
			if !trigger(rng, it.AbilityChance) {
				return 0, ""
			}
			return catalog.ReflectFactor * gunValue(shooter) * float64(intensity),
				fmt.Sprintf("%s Reflected Fire", defender.Name)
		},
	},
	domain.AbilityRegenShield: {
		onShieldUse: func(self *domain.Combatant, it *domain.Item, rng RNG) string {
			if !trigger(rng, it.AbilityChance) {
				return ""
			}
			self.ShieldCharges = min(self.ShieldCharges+1, self.MaxShieldCharges)
			return fmt.Sprintf("%s Shield Regenerated", self.Name)
		},
	},
	domain.AbilityAutoRepair: {
		afterExchange: func(self *domain.Combatant, it *domain.Item, rng RNG) string {
			if !self.Alive() || self.Armor >= self.MaxArmor {
				return ""
			}
			if !trigger(rng, it.AbilityChance) {
				return ""
			}
			self.Armor = math.Min(self.MaxArmor, self.Armor+it.Value*AutoRepairFraction)
			return fmt.Sprintf("%s Auto Repair", self.Name)
		},
	},
}

// effectOf returns the hooks for an item, the empty effect for nil items
// or abilities the table does not know.
func effectOf(it *domain.Item) effect {
	if it == nil {
		return effect{}
	}
	return effects[it.Ability]
}

// passive hooks keyed by character passive type
type passive struct {
	// shot fired; returns true when the ammo should be refunded
	saveAmmo func(ch *domain.Character, rng RNG) bool
	// shot about to land on the holder
	evade func(ch *domain.Character, rng RNG) bool
	// damage left after armor
	mitigate func(ch *domain.Character, dmg float64) float64
}

var passives = map[domain.PassiveType]passive{
	domain.PassiveDodge: {
		evade: func(ch *domain.Character, rng RNG) bool {
			return trigger(rng, ch.Passive.Value)
		},
	},
	domain.PassiveMitigation: {
		mitigate: func(ch *domain.Character, dmg float64) float64 {
			return dmg * (1 - ch.Passive.Value)
		},
	},
	domain.PassiveAmmoSaver: {
		saveAmmo: func(ch *domain.Character, rng RNG) bool {
			return trigger(rng, ch.Passive.Value)
		},
	},
}

func passiveOf(ch *domain.Character) passive {
	if ch == nil {
		return passive{}
	}
	return passives[ch.Passive.Type]
}

func trigger(rng RNG, chance float64) bool {
	if chance <= 0 {
		return false
	}
	return rng.Float64() < chance
}

func gunValue(c *domain.Combatant) float64 {
	if c.Gun == nil {
		return 0
	}
	return c.Gun.Value
}

func shieldValue(c *domain.Combatant) float64 {
	if c.Shield == nil {
		return 0
	}
	return c.Shield.Value
}
