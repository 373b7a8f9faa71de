package catalog

import "github.com/ernie/shoot-or-shield/internal/domain"

// Rebind points a decoded combatant's loadout and character back at the
// local catalog entries. Ids the catalog does not know keep the decoded copy.
func Rebind(c *domain.Combatant) {
	if c.Gun != nil {
		if it := Item(c.Gun.ID); it != nil {
			c.Gun = it
		}
	}
	if c.Shield != nil {
		if it := Item(c.Shield.ID); it != nil {
			c.Shield = it
		}
	}
	if c.ArmorItem != nil {
		if it := Item(c.ArmorItem.ID); it != nil {
			c.ArmorItem = it
		}
	}
	if c.Character != nil {
		if ch := Character(c.Character.ID); ch != nil {
			c.Character = ch
		}
	}
}

// RebindSnapshot applies Rebind to every player in the snapshot
func RebindSnapshot(s *domain.Snapshot) {
	for i := range s.Players {
		Rebind(&s.Players[i])
	}
}
