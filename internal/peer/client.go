package peer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

var (
	ErrKicked           = errors.New("kicked from room")
	ErrHostLeft         = errors.New("host closed the room")
	ErrHostDisconnected = errors.New("connection to host lost")
)

// Handshake builds the HANDSHAKE payload for a profile
func Handshake(p domain.Profile, ticket string) domain.HandshakePayload {
	return domain.HandshakePayload{
		Name:        p.Name,
		Level:       p.Level,
		Elo:         p.Elo,
		CharacterID: p.CharacterID,
		Loadout:     p.Loadout,
		Ticket:      ticket,
	}
}

// ClientSession mirrors a host's room. Every snapshot from the host
// replaces the local copy wholesale.
type ClientSession struct {
	tr        Transport
	hello     domain.HandshakePayload
	onSummary func(summary *domain.MatchSummary, selfID string)

	mu       sync.Mutex
	selfID   string
	phase    domain.Phase
	message  string
	lobby    domain.LobbyUpdatePayload
	snapshot domain.Snapshot
	matchID  string
	applied  map[string]bool
	chat     []domain.ChatPayload
	lastErr  string
	updates  chan struct{}
}

// NewClientSession creates a session that will introduce itself with
// hello. onSummary, if set, runs once per finished match.
func NewClientSession(tr Transport, hello domain.HandshakePayload, onSummary func(*domain.MatchSummary, string)) *ClientSession {
	return &ClientSession{
		tr:        tr,
		hello:     hello,
		onSummary: onSummary,
		phase:     domain.PhaseLobbyRoom,
		applied:   make(map[string]bool),
		updates:   make(chan struct{}, 1),
	}
}

// Run sends the handshake and applies host packets until the session
// ends. It returns nil when the player left or ctx ended.
func (c *ClientSession) Run(ctx context.Context) error {
	if err := c.send(domain.PacketHandshake, c.hello); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.tr.Events():
			if !ok || ev.Kind == EventDisconnect {
				return c.end(ErrHostDisconnected, "CONNECTION LOST")
			}
			if ev.Kind != EventMessage {
				continue
			}
			if err := c.apply(ev.Packet); err != nil {
				if errors.Is(err, ErrKicked) || errors.Is(err, ErrHostLeft) {
					c.tr.Close()
					return err
				}
				log.Printf("Warning: %v", err)
			}
		}
	}
}

// end drops back to the main menu unless the player already left
func (c *ClientSession) end(err error, message string) error {
	c.mu.Lock()
	if c.phase == domain.PhaseMainMenu {
		c.mu.Unlock()
		return nil
	}
	c.phase = domain.PhaseMainMenu
	c.message = message
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.notify()
	return err
}

func (c *ClientSession) apply(p domain.Packet) error {
	switch p.Type {
	case domain.PacketLobbyUpdate:
		var u domain.LobbyUpdatePayload
		if err := p.Decode(&u); err != nil {
			return err
		}
		for i := range u.Players {
			catalog.Rebind(&u.Players[i])
		}
		c.mu.Lock()
		c.lobby = u
		if u.YourID != "" {
			c.selfID = u.YourID
		}
		c.mu.Unlock()
	case domain.PacketStartGame:
		var s domain.StartGamePayload
		if err := p.Decode(&s); err != nil {
			return err
		}
		c.mu.Lock()
		c.matchID = s.MatchID
		c.phase = domain.PhaseCombat
		c.mu.Unlock()
	case domain.PacketGameStateSync:
		var s domain.Snapshot
		if err := p.Decode(&s); err != nil {
			return err
		}
		catalog.RebindSnapshot(&s)
		c.mu.Lock()
		c.snapshot = s
		c.phase = s.Phase
		c.message = s.Message
		apply := s.Summary != nil && !c.applied[s.MatchID]
		if apply {
			c.applied[s.MatchID] = true
		}
		self := c.selfID
		c.mu.Unlock()
		if apply && c.onSummary != nil {
			c.onSummary(s.Summary, self)
		}
	case domain.PacketKick:
		var k domain.KickPayload
		if err := p.Decode(&k); err != nil {
			return err
		}
		if k.PlayerID != c.SelfID() {
			return nil
		}
		c.end(ErrKicked, "KICKED: "+k.Reason)
		return ErrKicked
	case domain.PacketLobbyClosed:
		c.end(ErrHostLeft, "HOST LEFT")
		return ErrHostLeft
	case domain.PacketChat:
		var m domain.ChatPayload
		if err := p.Decode(&m); err != nil {
			return err
		}
		c.mu.Lock()
		c.chat = append(c.chat, m)
		c.mu.Unlock()
	case domain.PacketError:
		var e domain.ErrorPayload
		if err := p.Decode(&e); err != nil {
			return err
		}
		c.mu.Lock()
		c.lastErr = e.Message
		c.mu.Unlock()
	default:
		return fmt.Errorf("unexpected %s packet from host", p.Type)
	}
	c.notify()
	return nil
}

func (c *ClientSession) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *ClientSession) send(t domain.PacketType, payload any) error {
	pkt, err := domain.NewPacket(t, c.SelfID(), payload)
	if err != nil {
		return err
	}
	return c.tr.Send(HostID, pkt)
}

// Updates signals after every applied packet
func (c *ClientSession) Updates() <-chan struct{} {
	return c.updates
}

// SelfID returns the id the host assigned, empty until the first lobby update
func (c *ClientSession) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// Phase returns the outer phase the client is in
func (c *ClientSession) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Message returns the latest banner message
func (c *ClientSession) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Lobby returns the last roster received
func (c *ClientSession) Lobby() domain.LobbyUpdatePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobby
}

// Snapshot returns the mirrored match state
func (c *ClientSession) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Chat returns the chat lines received so far
func (c *ClientSession) Chat() []domain.ChatPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatPayload, len(c.chat))
	copy(out, c.chat)
	return out
}

// LastError returns the most recent error the host reported
func (c *ClientSession) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Ready toggles readiness in the lobby
func (c *ClientSession) Ready(ready bool) error {
	return c.send(domain.PacketPlayerReady, domain.PlayerReadyPayload{Ready: ready})
}

// Commit sends the move for the current round
func (c *ClientSession) Commit(action domain.Action, intensity int) error {
	round := c.Snapshot().Round
	return c.send(domain.PacketCommitMove, domain.CommitMovePayload{Action: action, Intensity: intensity, Round: round})
}

// Buy asks the host for a match purchase
func (c *ClientSession) Buy(itemID string) error {
	return c.send(domain.PacketMatchBuy, domain.ItemRequestPayload{ItemID: itemID})
}

// Loot asks the host for an item from the defeated opponent
func (c *ClientSession) Loot(itemID string) error {
	return c.send(domain.PacketLootRequest, domain.ItemRequestPayload{ItemID: itemID})
}

// Say sends a chat line to everyone in the room
func (c *ClientSession) Say(text string) error {
	return c.send(domain.PacketChat, domain.ChatPayload{Text: text, Scope: domain.ChatGlobal})
}

// SayTeam sends a chat line to the player's own team
func (c *ClientSession) SayTeam(text string) error {
	return c.send(domain.PacketChat, domain.ChatPayload{Text: text, Scope: domain.ChatTeam})
}

// Whisper sends a chat line to one player
func (c *ClientSession) Whisper(to, text string) error {
	return c.send(domain.PacketChat, domain.ChatPayload{Text: text, Scope: domain.ChatWhisper, To: to})
}

// Leave tells the host and hangs up
func (c *ClientSession) Leave() {
	c.send(domain.PacketLeave, nil)
	c.mu.Lock()
	c.phase = domain.PhaseMainMenu
	c.message = ""
	c.mu.Unlock()
	c.tr.Close()
	c.notify()
}
