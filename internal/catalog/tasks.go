package catalog

import (
	"math/rand/v2"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// DailyTaskCount is how many templates are drawn each day
const DailyTaskCount = 3

var taskTemplates = []domain.DailyTask{
	{ID: "task_win_1", Description: "Win 1 Match", Type: domain.TaskWin, Target: 1, Reward: 50},
	{ID: "task_play_3", Description: "Play 3 Matches", Type: domain.TaskPlay, Target: 3, Reward: 100},
	{ID: "task_dmg_500", Description: "Deal 500 Damage", Type: domain.TaskDamage, Target: 500, Reward: 150},
	{ID: "task_block_5", Description: "Perfect Block 5 Shots", Type: domain.TaskBlock, Target: 5, Reward: 100},
}

// TaskTemplates returns a copy of every daily task template
func TaskTemplates() []domain.DailyTask {
	out := make([]domain.DailyTask, len(taskTemplates))
	copy(out, taskTemplates)
	return out
}

// DrawDailyTasks returns a fresh random selection of daily tasks with
// progress reset.
func DrawDailyTasks(r *rand.Rand) []domain.DailyTask {
	tasks := TaskTemplates()
	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
	return tasks[:DailyTaskCount]
}
