package domain

import (
	"math"
	"slices"
	"time"
)

// PassiveType is the closed set of character passives
type PassiveType string

const (
	PassiveDodge      PassiveType = "DODGE"
	PassiveMitigation PassiveType = "MITIGATION"
	PassiveAmmoSaver  PassiveType = "AMMO_SAVER"
)

// Passive is a probabilistic or flat modifier attached to a character class
type Passive struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        PassiveType `json:"type"`
	Value       float64     `json:"value"`
}

// Character is a playable class
type Character struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description string  `json:"description"`
	Passive     Passive `json:"passive"`
}

// Has reports whether the character carries the given passive
func (c *Character) Has(t PassiveType) bool {
	return c != nil && c.Passive.Type == t
}

// Default charge counts for items that do not declare MaxCharges
const (
	DefaultAmmo          = 6
	DefaultShieldCharges = 3
)

// MatchStats accumulates per-combatant numbers over a whole match
type MatchStats struct {
	DamageDealt float64 `json:"damage_dealt"`
	DamageTaken float64 `json:"damage_taken"`
	ShotsFired  int     `json:"shots_fired"`
	ShotsHit    int     `json:"shots_hit"`
	Blocks      int     `json:"blocks"`
	Kills       int     `json:"kills"`
}

// Combatant is a player or bot inside a match
type Combatant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TeamID    int    `json:"team_id"`
	IsBot     bool   `json:"is_bot"`
	IsHost    bool   `json:"is_host"`
	IsReady   bool   `json:"is_ready"`
	Forfeited bool   `json:"forfeited,omitempty"`

	Level   int `json:"level"`
	Elo     int `json:"elo"`
	XP      int `json:"xp"`
	Credits int `json:"credits"`

	Character *Character `json:"character"`
	Gun       *Item      `json:"gun"`
	Shield    *Item      `json:"shield"`
	ArmorItem *Item      `json:"armor_item"`

	Health           float64 `json:"health"`
	MaxHealth        float64 `json:"max_health"`
	Armor            float64 `json:"armor"`
	MaxArmor         float64 `json:"max_armor"`
	Ammo             int     `json:"ammo"`
	MaxAmmo          int     `json:"max_ammo"`
	ShieldCharges    int     `json:"shield_charges"`
	MaxShieldCharges int     `json:"max_shield_charges"`

	RoundsWon         int        `json:"rounds_won"`
	MatchCash         int        `json:"match_cash"`
	CumulativeHealth  float64    `json:"cumulative_health"`
	SuccessfulActions int        `json:"successful_actions"`
	Stats             MatchStats `json:"stats"`
}

// Alive reports whether the combatant still has health left
func (c *Combatant) Alive() bool {
	return c.Health > 0
}

// Resupply restores health, armor, ammo and shield charges to their maximums
func (c *Combatant) Resupply() {
	c.Health = c.MaxHealth
	c.Armor = c.MaxArmor
	c.Ammo = c.MaxAmmo
	c.ShieldCharges = c.MaxShieldCharges
}

// Equip re-binds one loadout slot to a catalog item and refills the
// resource that slot governs.
func (c *Combatant) Equip(it *Item) {
	switch it.Kind {
	case KindGun:
		c.Gun = it
		c.MaxAmmo = chargesOr(it, DefaultAmmo)
		c.Ammo = c.MaxAmmo
	case KindShield:
		c.Shield = it
		c.MaxShieldCharges = chargesOr(it, DefaultShieldCharges)
		c.ShieldCharges = c.MaxShieldCharges
	case KindArmor:
		c.ArmorItem = it
		c.MaxArmor = it.Value
		c.Armor = it.Value
	}
}

// Slot returns the item currently bound to the given slot
func (c *Combatant) Slot(kind ItemKind) *Item {
	switch kind {
	case KindGun:
		return c.Gun
	case KindShield:
		return c.Shield
	case KindArmor:
		return c.ArmorItem
	}
	return nil
}

// Display returns the resource numbers rounded up the way the UI shows them
func (c *Combatant) Display() (health, armor int) {
	return int(math.Ceil(c.Health)), int(math.Ceil(c.Armor))
}

func chargesOr(it *Item, def int) int {
	if it.MaxCharges > 0 {
		return it.MaxCharges
	}
	return def
}

// MatchRecordLimit caps the persisted match history
const MatchRecordLimit = 50

// Match outcomes as recorded in history
const (
	ResultVictory = "VICTORY"
	ResultDefeat  = "DEFEAT"
	ResultDraw    = "DRAW"
)

// MatchRecord is one entry of a profile's match history
type MatchRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	OpponentName  string    `json:"opponent_name"`
	Result        string    `json:"result"`
	EloChange     int       `json:"elo_change"`
	CreditsEarned int       `json:"credits_earned"`
	XPEarned      int       `json:"xp_earned"`
	DamageDealt   float64   `json:"damage_dealt"`
	DamageTaken   float64   `json:"damage_taken"`
	ShotsFired    int       `json:"shots_fired"`
	ShotsHit      int       `json:"shots_hit"`
	Accuracy      float64   `json:"accuracy"`
	Mode          GameMode  `json:"mode"`
}

// TaskType groups daily tasks by the counter they track
type TaskType string

const (
	TaskWin    TaskType = "WIN"
	TaskPlay   TaskType = "PLAY"
	TaskDamage TaskType = "DAMAGE"
	TaskBlock  TaskType = "BLOCK"
)

// DailyTask is a per-day objective with a credit reward
type DailyTask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Type        TaskType `json:"type"`
	Target      int      `json:"target"`
	Current     int      `json:"current"`
	Reward      int      `json:"reward"`
	Claimed     bool     `json:"claimed"`
}

// AchievementUnlock records when an achievement was earned
type AchievementUnlock struct {
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Loadout holds the ids of equipped catalog items
type Loadout struct {
	Gun    string `json:"gun"`
	Shield string `json:"shield"`
	Armor  string `json:"armor"`
}

// Profile is the persistent record owned by a human player
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`

	Level   int `json:"level"`
	XP      int `json:"xp"`
	MaxXP   int `json:"max_xp"`
	Elo     int `json:"elo"`
	Credits int `json:"credits"`

	TotalMatchesPlayed int     `json:"total_matches_played"`
	MatchesWon         int     `json:"matches_won"`
	MatchesLost        int     `json:"matches_lost"`
	WinStreak          int     `json:"win_streak"`
	BestWinStreak      int     `json:"best_win_streak"`
	TotalDamageDealt   float64 `json:"total_damage_dealt"`
	TotalDamageTaken   float64 `json:"total_damage_taken"`
	TotalShotsFired    int     `json:"total_shots_fired"`
	TotalShotsHit      int     `json:"total_shots_hit"`
	Accuracy           float64 `json:"accuracy"`

	Achievements []AchievementUnlock `json:"achievements"`
	MatchHistory []MatchRecord       `json:"match_history"`
	DailyTasks   []DailyTask         `json:"daily_tasks"`
	Inventory    []string            `json:"inventory"`

	CharacterID string    `json:"character_id"`
	Loadout     Loadout   `json:"loadout"`
	LastLogin   time.Time `json:"last_login"`
}

// Owns reports whether the item id is in the inventory
func (p Profile) Owns(itemID string) bool {
	return slices.Contains(p.Inventory, itemID)
}

// HasAchievement reports whether the achievement was already unlocked
func (p Profile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.AchievementID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with p
func (p Profile) Clone() Profile {
	p.Achievements = slices.Clone(p.Achievements)
	p.MatchHistory = slices.Clone(p.MatchHistory)
	p.DailyTasks = slices.Clone(p.DailyTasks)
	p.Inventory = slices.Clone(p.Inventory)
	return p
}
