package match

import "errors"

var (
	ErrNotHost           = errors.New("only the host can do that")
	ErrAlreadyCommitted  = errors.New("move already committed this turn")
	ErrWrongPhase        = errors.New("not allowed in the current phase")
	ErrInsufficientFunds = errors.New("insufficient match cash")
	ErrNotOwned          = errors.New("item not equipped by that combatant")
	ErrNotBetter         = errors.New("item is not an upgrade")
	ErrNotDefeated       = errors.New("opponent was not defeated this round")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownCombatant  = errors.New("unknown combatant")
	ErrEliminated        = errors.New("combatant is eliminated")
	ErrUnbalancedTeams   = errors.New("teams are not balanced")
	ErrRoomFull          = errors.New("room is full")
	ErrTeamFull          = errors.New("team is full")
	ErrNotReady          = errors.New("not every player is ready")
	ErrAlreadyStarted    = errors.New("match already started")
	ErrClosed            = errors.New("match is closed")
	ErrInvalidTeam       = errors.New("invalid team")
)
