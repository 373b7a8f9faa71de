// Package progression applies match outcomes and shop actions to a
// persistent profile. Every operation takes a profile by value and returns
// a replacement; callers never see a half-applied update.
package progression

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient credits")
	ErrNotOwned          = errors.New("item not owned")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownCharacter  = errors.New("unknown character")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskIncomplete    = errors.New("task not complete")
	ErrTaskClaimed       = errors.New("task already claimed")
)

// NewProfile creates a fresh level 1 profile with the starter loadout
func NewProfile(name string, now time.Time, rng *rand.Rand) domain.Profile {
	if name == "" {
		name = "Player"
	}
	return domain.Profile{
		ID:          uuid.NewString(),
		Username:    Username(name),
		Name:        name,
		Level:       1,
		MaxXP:       catalog.LevelXP(1),
		Elo:         catalog.StartingElo,
		Credits:     catalog.StartingCredits,
		Inventory:   catalog.Starters(),
		DailyTasks:  catalog.DrawDailyTasks(rng),
		CharacterID: catalog.DefaultCharacter,
		Loadout: domain.Loadout{
			Gun:    catalog.StarterGun,
			Shield: catalog.StarterShield,
			Armor:  catalog.StarterArmor,
		},
		LastLogin: now,
	}
}

// Username derives a stable handle from a callsign
func Username(name string) string {
	s := slug.Make(name)
	if s == "" {
		return "user_guest"
	}
	return "user_" + s
}

// Rename changes the display name and the derived username
func Rename(p domain.Profile, name string) domain.Profile {
	if name == "" {
		return p
	}
	p = p.Clone()
	p.Name = name
	p.Username = Username(name)
	return p
}

// AddXP adds experience and cascades through as many level-ups as the
// amount covers. Each level-up grants a flat credit bonus. It returns the
// number of levels gained.
func AddXP(p domain.Profile, amount int) (domain.Profile, int) {
	p = p.Clone()
	if p.Level < 1 {
		p.Level = 1
	}
	if p.MaxXP <= 0 {
		p.MaxXP = catalog.LevelXP(p.Level)
	}
	p.XP += amount
	gained := 0
	for p.XP >= p.MaxXP {
		p.XP -= p.MaxXP
		p.Level++
		p.MaxXP = catalog.LevelXP(p.Level)
		p.Credits += catalog.LevelUpCredits
		gained++
	}
	return p, gained
}

// EloDelta is the rating change for a player rated own after a match
// against an opponent (or opposing team average) rated opp.
func EloDelta(own, opp int, won bool) int {
	expected := 1 / (1 + math.Pow(10, float64(opp-own)/400))
	score := 0.0
	if won {
		score = 1
	}
	return int(math.Round(catalog.KFactor * (score - expected)))
}
