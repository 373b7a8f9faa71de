package progression

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// UpdateDetailedStats rolls one finished match into the lifetime counters
// and prepends it to the bounded history.
func UpdateDetailedStats(p domain.Profile, rec domain.MatchRecord) domain.Profile {
	p = p.Clone()
	won := rec.Result == domain.ResultVictory

	p.TotalMatchesPlayed++
	if won {
		p.MatchesWon++
		p.WinStreak++
	} else {
		p.MatchesLost++
		p.WinStreak = 0
	}
	p.BestWinStreak = max(p.BestWinStreak, p.WinStreak)

	p.TotalDamageDealt += rec.DamageDealt
	p.TotalDamageTaken += rec.DamageTaken
	p.TotalShotsFired += rec.ShotsFired
	p.TotalShotsHit += rec.ShotsHit
	p.Accuracy = 0
	if p.TotalShotsFired > 0 {
		p.Accuracy = float64(p.TotalShotsHit) / float64(p.TotalShotsFired)
	}

	history := make([]domain.MatchRecord, 0, min(len(p.MatchHistory)+1, domain.MatchRecordLimit))
	history = append(history, rec)
	for _, r := range p.MatchHistory {
		if len(history) == domain.MatchRecordLimit {
			break
		}
		history = append(history, r)
	}
	p.MatchHistory = history
	return p
}

// CheckAchievements unlocks every achievement whose condition now holds.
// Achievements already unlocked are skipped by id.
func CheckAchievements(p domain.Profile, now time.Time) (domain.Profile, []catalog.Achievement) {
	var unlocked []catalog.Achievement
	for _, a := range catalog.Achievements {
		if p.HasAchievement(a.ID) || !a.Condition(&p) {
			continue
		}
		unlocked = append(unlocked, a)
	}
	if len(unlocked) == 0 {
		return p, nil
	}
	p = p.Clone()
	for _, a := range unlocked {
		p.Achievements = append(p.Achievements, domain.AchievementUnlock{AchievementID: a.ID, UnlockedAt: now})
	}
	return p, unlocked
}

// Result describes what a finished match did to a profile
type Result struct {
	Won             bool
	XPGained        int
	CreditsGained   int
	OldElo          int
	NewElo          int
	LevelsGained    int
	Title           string
	NewAchievements []catalog.Achievement
	Record          domain.MatchRecord
}

// ApplyMatch folds a match summary into the profile of the combatant selfID
func ApplyMatch(p domain.Profile, s *domain.MatchSummary, selfID string, now time.Time) (domain.Profile, Result, error) {
	out, ok := s.For(selfID)
	if !ok {
		return p, Result{}, fmt.Errorf("combatant %s not in match %s", selfID, s.MatchID)
	}

	res := Result{Won: out.Won, OldElo: p.Elo}
	if out.Won {
		res.XPGained, res.CreditsGained = catalog.XPPerWin, catalog.WinCredits
	} else {
		res.XPGained, res.CreditsGained = catalog.XPPerLoss, catalog.LossCredits
	}

	next, levels := AddXP(p, res.XPGained)
	res.LevelsGained = levels
	next.Elo = max(0, next.Elo+out.EloChange)
	res.NewElo = next.Elo
	res.Title = catalog.RankTitle(next.Elo)

	result := domain.ResultDefeat
	if out.Won {
		result = domain.ResultVictory
	}
	acc := 0.0
	if out.Stats.ShotsFired > 0 {
		acc = float64(out.Stats.ShotsHit) / float64(out.Stats.ShotsFired)
	}
	res.Record = domain.MatchRecord{
		ID:            uuid.NewString(),
		Timestamp:     now,
		OpponentName:  out.OpponentName,
		Result:        result,
		EloChange:     next.Elo - p.Elo,
		CreditsEarned: res.CreditsGained,
		XPEarned:      res.XPGained,
		DamageDealt:   out.Stats.DamageDealt,
		DamageTaken:   out.Stats.DamageTaken,
		ShotsFired:    out.Stats.ShotsFired,
		ShotsHit:      out.Stats.ShotsHit,
		Accuracy:      acc,
		Mode:          s.Mode,
	}
	next = UpdateDetailedStats(next, res.Record)

	next = UpdateTasks(next, domain.TaskPlay, 1)
	if out.Won {
		next = UpdateTasks(next, domain.TaskWin, 1)
	}
	next = UpdateTasks(next, domain.TaskDamage, int(math.Round(out.Stats.DamageDealt)))
	next = UpdateTasks(next, domain.TaskBlock, out.Stats.Blocks)

	next, res.NewAchievements = CheckAchievements(next, now)
	next.Credits += res.CreditsGained
	return next, res, nil
}
