package progression

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// SameDay reports whether a and b fall on the same local calendar date
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// Login applies the once-per-calendar-day rollover: the login reward and
// a fresh draw of daily tasks. It reports whether the rollover happened.
func Login(p domain.Profile, now time.Time, rng *rand.Rand) (domain.Profile, bool) {
	p = p.Clone()
	if len(p.DailyTasks) == 0 {
		p.DailyTasks = catalog.DrawDailyTasks(rng)
	}
	if !p.LastLogin.IsZero() && SameDay(p.LastLogin, now) {
		return p, false
	}
	p.Credits += catalog.DailyLoginReward
	p.DailyTasks = catalog.DrawDailyTasks(rng)
	p.LastLogin = now
	return p, true
}

// UpdateTasks advances every unclaimed task of the given type, capped at
// its target.
func UpdateTasks(p domain.Profile, t domain.TaskType, amount int) domain.Profile {
	p = p.Clone()
	for i := range p.DailyTasks {
		task := &p.DailyTasks[i]
		if task.Type == t && !task.Claimed {
			task.Current = min(task.Target, task.Current+amount)
		}
	}
	return p
}

// ClaimTask pays out a completed task once
func ClaimTask(p domain.Profile, taskID string) (domain.Profile, error) {
	i := slices.IndexFunc(p.DailyTasks, func(t domain.DailyTask) bool { return t.ID == taskID })
	if i < 0 {
		return p, ErrTaskNotFound
	}
	task := p.DailyTasks[i]
	if task.Claimed {
		return p, ErrTaskClaimed
	}
	if task.Current < task.Target {
		return p, ErrTaskIncomplete
	}
	p = p.Clone()
	p.DailyTasks[i].Claimed = true
	p.Credits += task.Reward
	return p, nil
}
