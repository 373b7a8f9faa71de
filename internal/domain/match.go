package domain

import (
	"strconv"
	"time"
)

// Action is what a combatant commits to for one decision window
type Action string

const (
	ActionShoot  Action = "SHOOT"
	ActionShield Action = "SHIELD"
	ActionIdle   Action = "IDLE"
)

// Valid reports whether a is one of the three actions
func (a Action) Valid() bool {
	return a == ActionShoot || a == ActionShield || a == ActionIdle
}

// Move is a committed action with its burst intensity
type Move struct {
	Action    Action `json:"action"`
	Intensity int    `json:"intensity"`
	Round     int    `json:"round"`
}

// GameMode distinguishes solo play from host-relayed multiplayer
type GameMode string

const (
	ModeSolo        GameMode = "SOLO"
	ModeMultiplayer GameMode = "MULTIPLAYER"
)

// MatchType is the lobby's team-size preset
type MatchType string

const (
	Match1v1    MatchType = "1v1"
	Match2v2    MatchType = "2v2"
	Match3v3    MatchType = "3v3"
	Match4v4    MatchType = "4v4"
	MatchCustom MatchType = "CUSTOM"
)

// TimeFormat selects the decision window length
type TimeFormat string

const (
	FormatBullet   TimeFormat = "BULLET"
	FormatBlitz    TimeFormat = "BLITZ"
	FormatRapid    TimeFormat = "RAPID"
	FormatTactical TimeFormat = "TACTICAL"
)

var timeControls = map[TimeFormat]time.Duration{
	FormatBullet:   5 * time.Second,
	FormatBlitz:    10 * time.Second,
	FormatRapid:    20 * time.Second,
	FormatTactical: 60 * time.Second,
}

// Duration returns the decision window for the format, RAPID when unknown
func (f TimeFormat) Duration() time.Duration {
	if d, ok := timeControls[f]; ok {
		return d
	}
	return timeControls[FormatRapid]
}

// Valid reports whether f is a known time format
func (f TimeFormat) Valid() bool {
	_, ok := timeControls[f]
	return ok
}

// Phase is the outer game phase
type Phase string

const (
	PhaseMainMenu  Phase = "MAIN_MENU"
	PhaseLobbyRoom Phase = "LOBBY_ROOM"
	PhaseCombat    Phase = "COMBAT"
	PhaseShop      Phase = "SHOP"
	PhaseGameOver  Phase = "GAMEOVER"
	PhaseVictory   Phase = "VICTORY"
	PhasePostMatch Phase = "POST_MATCH"
)

// SubPhase is the combat phase inside a round
type SubPhase string

const (
	SubIntro       SubPhase = "INTRO"
	SubShopping    SubPhase = "SHOPPING"
	SubDecision    SubPhase = "DECISION"
	SubResolution  SubPhase = "RESOLUTION"
	SubPreparation SubPhase = "PREPARATION"
	SubRoundOver   SubPhase = "ROUND_OVER"
)

// Settings are the host-controlled lobby options
type Settings struct {
	MatchType      MatchType  `json:"match_type"`
	CustomTeamSize int        `json:"custom_team_size,omitempty"`
	MaxRounds      int        `json:"max_rounds"`
	TimeFormat     TimeFormat `json:"time_format"`
	// Private rooms admit only ticket holders
	Private        bool       `json:"private,omitempty"`
}

// TeamSize returns how many combatants each team fields
func (s Settings) TeamSize() int {
	if s.MatchType == MatchCustom {
		if s.CustomTeamSize > 0 {
			return s.CustomTeamSize
		}
		return 2
	}
	if len(s.MatchType) > 0 {
		if n, err := strconv.Atoi(string(s.MatchType[0])); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// WinThreshold is the number of round wins that takes the match
func (s Settings) WinThreshold() int {
	return (s.MaxRounds + 1) / 2
}

// TurnResult is the immutable record of one resolved duel
type TurnResult struct {
	Round       int      `json:"round"`
	AID         string   `json:"a_id"`
	BID         string   `json:"b_id"`
	AAction     Action   `json:"a_action"`
	BAction     Action   `json:"b_action"`
	AIntensity  int      `json:"a_intensity"`
	BIntensity  int      `json:"b_intensity"`
	DamageA     float64  `json:"damage_a"`
	DamageB     float64  `json:"damage_b"`
	PenaltyA    float64  `json:"penalty_a"`
	PenaltyB    float64  `json:"penalty_b"`
	Events      []string `json:"events,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Involves reports whether the combatant took part in the duel
func (t TurnResult) Involves(id string) bool {
	return t.AID == id || t.BID == id
}

// CombatantOutcome is the per-combatant slice of a finished match
type CombatantOutcome struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	TeamID       int        `json:"team_id"`
	IsBot        bool       `json:"is_bot"`
	Won          bool       `json:"won"`
	EloChange    int        `json:"elo_change"`
	OpponentName string     `json:"opponent_name"`
	Stats        MatchStats `json:"stats"`
}

// MatchSummary is produced once when a match ends
type MatchSummary struct {
	MatchID    string             `json:"match_id"`
	Mode       GameMode           `json:"mode"`
	WinnerTeam int                `json:"winner_team"`
	Rounds     int                `json:"rounds"`
	EndedAt    time.Time          `json:"ended_at"`
	Outcomes   []CombatantOutcome `json:"outcomes"`
}

// For returns the outcome for one combatant
func (s *MatchSummary) For(id string) (CombatantOutcome, bool) {
	for _, o := range s.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return CombatantOutcome{}, false
}

// Snapshot is the full authoritative match state mirrored to clients
type Snapshot struct {
	MatchID     string            `json:"match_id"`
	Phase       Phase             `json:"phase"`
	SubPhase    SubPhase          `json:"sub_phase"`
	Mode        GameMode          `json:"mode"`
	Round       int               `json:"round"`
	MaxRounds   int               `json:"max_rounds"`
	Players     []Combatant       `json:"players"`
	Matchups    map[string]string `json:"matchups"`
	TurnLog     []TurnResult      `json:"turn_log"`
	Message     string            `json:"message"`
	TimeLeft    float64           `json:"time_left"`
	PhaseEndsAt time.Time         `json:"phase_ends_at,omitempty"`
	WinnerTeam  int               `json:"winner_team,omitempty"`
	Summary     *MatchSummary     `json:"summary,omitempty"`
}

// Player returns the combatant with the given id
func (s *Snapshot) Player(id string) (Combatant, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Combatant{}, false
}

// Remaining recomputes time left from the phase deadline, so a resumed
// client does not depend on continuous tick delivery.
func (s *Snapshot) Remaining(now time.Time) time.Duration {
	if s.PhaseEndsAt.IsZero() {
		return 0
	}
	if d := s.PhaseEndsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
