package catalog

// Credits, XP and rating constants
const (
	StartingCredits  = 100
	StartingElo      = 1200
	WinCredits       = 100
	LossCredits      = 25
	XPPerWin         = 100
	XPPerLoss        = 25
	LevelUpCredits   = 100
	XPPerLevel       = 500
	DailyLoginReward = 200
	KFactor          = 32
)

// Per-match cash, reset every match
const (
	MatchStartingCash = 500
	RoundWinCash      = 1500
	RoundLossCash     = 800
	SurvivalBonus     = 200
	KillBonus         = 300
)

// Combat constants
const (
	BaseHealth        = 100.0
	BotHealthPerLevel = 10.0
	BaseShieldPenalty = 15.0
	ReflectFactor     = 0.5
	CriticalFactor    = 1.5
)

// LevelXP is the XP needed to leave the given level. Levels 1 and 2 both
// cost one step; from there each level costs one more.
func LevelXP(level int) int {
	return max(1, level-1) * XPPerLevel
}

// Rank is a named ELO band
type Rank struct {
	MinElo int
	Title  string
}

var ranks = []Rank{
	{0, "Script Kiddie"},
	{1100, "Hacker"},
	{1300, "Operative"},
	{1500, "Elite"},
	{1700, "Cyber-Master"},
	{2000, "Grandmaster"},
}

// RankTitle returns the highest rank whose floor elo reaches
func RankTitle(elo int) string {
	title := ranks[0].Title
	for _, r := range ranks {
		if elo >= r.MinElo {
			title = r.Title
		}
	}
	return title
}

// BotNames are the callsigns handed to backfill bots
var BotNames = []string{
	"Glitch", "Zero", "Vortex", "Cipher", "Dredd", "Nova", "Flux", "Reaper", "Kilo", "Echo",
}
