package match

import (
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// DefaultSettings returns the lobby settings a new room starts with
func DefaultSettings() domain.Settings {
	return domain.Settings{
		MatchType:  domain.Match1v1,
		MaxRounds:  3,
		TimeFormat: domain.FormatRapid,
	}
}

// Room is the pre-match lobby owned by the host
type Room struct {
	mu       sync.Mutex
	code     string
	hostID   string
	settings domain.Settings
	players  []domain.Combatant
	rng      *rand.Rand
}

// NewRoom opens a room with the host on team 1
func NewRoom(host domain.Combatant, settings domain.Settings, rng *rand.Rand) *Room {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	host.TeamID = Team1
	host.IsHost = true
	host.IsReady = true
	return &Room{
		code:     RoomCode(),
		hostID:   host.ID,
		settings: normalizeSettings(settings),
		players:  []domain.Combatant{host},
		rng:      rng,
	}
}

// RoomCode generates a short shareable room code
func RoomCode() string {
	return strings.ToUpper(uuid.NewString()[:6])
}

func normalizeSettings(s domain.Settings) domain.Settings {
	d := DefaultSettings()
	if s.MatchType == "" {
		s.MatchType = d.MatchType
	}
	if s.MaxRounds <= 0 {
		s.MaxRounds = d.MaxRounds
	}
	if !s.TimeFormat.Valid() {
		s.TimeFormat = d.TimeFormat
	}
	return s
}

// Code returns the room code
func (r *Room) Code() string {
	return r.code
}

// HostID returns the host combatant id
func (r *Room) HostID() string {
	return r.hostID
}

// Settings returns the current lobby settings
func (r *Room) Settings() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Players returns a copy of the roster
func (r *Room) Players() []domain.Combatant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.players)
}

// Update builds the LOBBY_UPDATE payload for the current roster
func (r *Room) Update() domain.LobbyUpdatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.LobbyUpdatePayload{
		RoomCode: r.code,
		HostID:   r.hostID,
		Players:  slices.Clone(r.players),
		Settings: r.settings,
	}
}

// Join adds a combatant to the smaller team, team 1 on a tie
func (r *Room) Join(c domain.Combatant) (domain.Combatant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.settings.TeamSize()
	n1 := len(TeamMembers(r.players, Team1))
	n2 := len(TeamMembers(r.players, Team2))
	if n1+n2 >= 2*size {
		return c, ErrRoomFull
	}
	c.TeamID = Team1
	if n2 < n1 {
		c.TeamID = Team2
	}
	c.IsHost = false
	c.IsReady = false
	if i := r.indexLocked(c.ID); i >= 0 {
		r.players[i] = c
	} else {
		r.players = append(r.players, c)
	}
	log.Printf("Lobby %s: %s joined team %d", r.code, c.Name, c.TeamID)
	return c, nil
}

// Remove drops a combatant from the roster. It reports whether one was removed.
func (r *Room) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return false
	}
	log.Printf("Lobby %s: %s left", r.code, r.players[i].Name)
	r.players = slices.Delete(r.players, i, i+1)
	return true
}

// SetReady toggles a combatant's readiness
func (r *Room) SetReady(id string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return ErrUnknownCombatant
	}
	r.players[i].IsReady = ready
	return nil
}

// SwitchTeam moves target to team. Only the host may reassign, and the
// moved player has to ready up again.
func (r *Room) SwitchTeam(requester, target string, team int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requester != r.hostID {
		return ErrNotHost
	}
	if team != Team1 && team != Team2 {
		return ErrInvalidTeam
	}
	i := r.indexLocked(target)
	if i < 0 {
		return ErrUnknownCombatant
	}
	if r.players[i].TeamID == team {
		return nil
	}
	if len(TeamMembers(r.players, team)) >= r.settings.TeamSize() {
		return ErrTeamFull
	}
	r.players[i].TeamID = team
	if target != r.hostID {
		r.players[i].IsReady = false
	}
	return nil
}

// Kick removes target on the host's request
func (r *Room) Kick(requester, target string) error {
	if requester != r.hostID {
		return ErrNotHost
	}
	if target == r.hostID {
		return ErrUnknownCombatant
	}
	if !r.Remove(target) {
		return ErrUnknownCombatant
	}
	return nil
}

// UpdateSettings replaces the lobby settings on the host's request
func (r *Room) UpdateSettings(requester string, s domain.Settings) error {
	if requester != r.hostID {
		return ErrNotHost
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s = normalizeSettings(s)
	size := s.TeamSize()
	if len(TeamMembers(r.players, Team1)) > size || len(TeamMembers(r.players, Team2)) > size {
		return ErrTeamFull
	}
	r.settings = s
	return nil
}

// Start validates readiness, backfills empty slots with bots scaled to the
// host's level and returns the final roster. The bots belong to that match
// only; the lobby keeps its human roster for the next one.
func (r *Room) Start(requester string) ([]domain.Combatant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requester != r.hostID {
		return nil, ErrNotHost
	}
	for _, c := range r.players {
		if !c.IsReady && !c.IsBot {
			return nil, ErrNotReady
		}
	}

	hostLevel := 1
	if i := r.indexLocked(r.hostID); i >= 0 {
		hostLevel = r.players[i].Level
	}
	size := r.settings.TeamSize()
	roster := slices.Clone(r.players)
	for _, team := range []int{Team1, Team2} {
		for n := len(TeamMembers(roster, team)); n < size; n++ {
			roster = append(roster, NewBot(hostLevel, team, r.rng))
		}
	}
	if !Balanced(roster) {
		return nil, ErrUnbalancedTeams
	}
	log.Printf("Lobby %s: starting %dv%d", r.code, size, size)
	return slices.Clone(roster), nil
}

func (r *Room) indexLocked(id string) int {
	return slices.IndexFunc(r.players, func(c domain.Combatant) bool { return c.ID == id })
}
