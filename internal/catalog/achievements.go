package catalog

import "github.com/ernie/shoot-or-shield/internal/domain"

// Achievement is a one-time unlock evaluated against a profile
type Achievement struct {
	ID          string
	Name        string
	Description string
	Tier        string
	Condition   func(p *domain.Profile) bool
}

// Achievements is the full unlock table in display order
var Achievements = []Achievement{
	{ID: "first_blood", Name: "First Blood", Description: "Win your first match.", Tier: "BRONZE",
		Condition: func(p *domain.Profile) bool { return p.MatchesWon >= 1 }},
	{ID: "veteran", Name: "Veteran", Description: "Play 50 matches.", Tier: "SILVER",
		Condition: func(p *domain.Profile) bool { return p.TotalMatchesPlayed >= 50 }},
	{ID: "unstoppable", Name: "Unstoppable", Description: "Reach a win streak of 5.", Tier: "GOLD",
		Condition: func(p *domain.Profile) bool { return p.WinStreak >= 5 }},
	{ID: "damage_dealer", Name: "Heavy Hitter", Description: "Deal 10,000 total damage.", Tier: "SILVER",
		Condition: func(p *domain.Profile) bool { return p.TotalDamageDealt >= 10000 }},
	{ID: "cyber_god", Name: "Cyber God", Description: "Reach level 50.", Tier: "PLATINUM",
		Condition: func(p *domain.Profile) bool { return p.Level >= 50 }},
	{ID: "sharpshooter", Name: "Sharpshooter", Description: "Maintain 80% accuracy (min 100 shots).", Tier: "GOLD",
		Condition: func(p *domain.Profile) bool { return p.TotalShotsFired > 100 && p.Accuracy >= 0.8 }},
}

// AchievementByID looks up an achievement definition
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
