package progression

import (
	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Purchase buys a catalog item into the inventory
func Purchase(p domain.Profile, itemID string) (domain.Profile, error) {
	it := catalog.Item(itemID)
	if it == nil {
		return p, ErrUnknownItem
	}
	if p.Owns(itemID) {
		return p, ErrAlreadyOwned
	}
	if p.Credits < it.Cost {
		return p, ErrInsufficientFunds
	}
	p = p.Clone()
	p.Credits -= it.Cost
	p.Inventory = append(p.Inventory, itemID)
	return p, nil
}

// Equip binds an owned item to its loadout slot
func Equip(p domain.Profile, itemID string) (domain.Profile, error) {
	it := catalog.Item(itemID)
	if it == nil {
		return p, ErrUnknownItem
	}
	if !p.Owns(itemID) {
		return p, ErrNotOwned
	}
	p = p.Clone()
	switch it.Kind {
	case domain.KindGun:
		p.Loadout.Gun = itemID
	case domain.KindShield:
		p.Loadout.Shield = itemID
	case domain.KindArmor:
		p.Loadout.Armor = itemID
	}
	return p, nil
}

// SelectCharacter changes the playable class
func SelectCharacter(p domain.Profile, id string) (domain.Profile, error) {
	if catalog.Character(id) == nil {
		return p, ErrUnknownCharacter
	}
	p = p.Clone()
	p.CharacterID = id
	return p, nil
}
