package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for match notifications (event bus and websocket observers)
const (
	EventPlayerJoin   = "player_join"
	EventPlayerLeave  = "player_leave"
	EventMatchStart   = "match_start"
	EventRoundStart   = "round_start"
	EventTurnResolved = "turn_resolved"
	EventRoundEnd     = "round_end"
	EventMatchEnd     = "match_end"
	EventChat         = "chat"
)

// Event represents a real-time match event for broadcast to observers
type Event struct {
	Type      string    `json:"event"`
	MatchID   string    `json:"match_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// RoundEndEvent is sent when a round is decided
type RoundEndEvent struct {
	Round      int  `json:"round"`
	WinnerTeam int  `json:"winner_team"`
	Draw       bool `json:"draw,omitempty"`
}

// PlayerLeaveEvent is sent when a player leaves or disconnects
type PlayerLeaveEvent struct {
	PlayerID  string `json:"player_id"`
	Name      string `json:"name"`
	Forfeited bool   `json:"forfeited,omitempty"`
}

// PacketType tags every message on the peer channel
type PacketType string

const (
	PacketHandshake     PacketType = "HANDSHAKE"
	PacketLobbyUpdate   PacketType = "LOBBY_UPDATE"
	PacketPlayerReady   PacketType = "PLAYER_READY"
	PacketStartGame     PacketType = "START_GAME"
	PacketCommitMove    PacketType = "COMMIT_MOVE"
	PacketGameStateSync PacketType = "GAME_STATE_SYNC"
	PacketKick          PacketType = "KICK"
	PacketSwitchTeam    PacketType = "SWITCH_TEAM"
	PacketChat          PacketType = "CHAT"
	PacketLeave         PacketType = "LEAVE"
	PacketLobbySettings PacketType = "LOBBY_SETTINGS"
	PacketMatchBuy      PacketType = "MATCH_BUY"
	PacketLootRequest   PacketType = "LOOT_REQUEST"
	PacketLobbyClosed   PacketType = "LOBBY_CLOSED"
	PacketError         PacketType = "ERROR"
)

// Packet is the envelope exchanged between host and clients
type Packet struct {
	Type     PacketType      `json:"type"`
	SenderID string          `json:"sender_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewPacket encodes payload into a packet of the given type
func NewPacket(t PacketType, senderID string, payload any) (Packet, error) {
	p := Packet{Type: t, SenderID: senderID}
	if payload == nil {
		return p, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return p, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	p.Payload = data
	return p, nil
}

// Decode unmarshals the packet payload into v
func (p Packet) Decode(v any) error {
	if len(p.Payload) == 0 {
		return fmt.Errorf("%s packet has no payload", p.Type)
	}
	if err := json.Unmarshal(p.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", p.Type, err)
	}
	return nil
}

// HandshakePayload introduces a joining client to the host
type HandshakePayload struct {
	Name        string  `json:"name"`
	Level       int     `json:"level"`
	Elo         int     `json:"elo"`
	CharacterID string  `json:"character_id"`
	Loadout     Loadout `json:"loadout"`
	Ticket      string  `json:"ticket,omitempty"`
}

// LobbyUpdatePayload is the host's roster broadcast
type LobbyUpdatePayload struct {
	RoomCode string      `json:"room_code"`
	HostID   string      `json:"host_id"`
	Players  []Combatant `json:"players"`
	Settings Settings    `json:"settings"`
	YourID   string      `json:"your_id,omitempty"`
}

// PlayerReadyPayload toggles readiness
type PlayerReadyPayload struct {
	Ready bool `json:"ready"`
}

// StartGamePayload announces the match start
type StartGamePayload struct {
	MatchID  string   `json:"match_id"`
	Settings Settings `json:"settings"`
}

// CommitMovePayload carries a client's locked move for the round
type CommitMovePayload struct {
	Action    Action `json:"action"`
	Intensity int    `json:"intensity"`
	Round     int    `json:"round"`
}

// KickPayload removes a player from the room
type KickPayload struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

// SwitchTeamPayload moves a player to another team
type SwitchTeamPayload struct {
	PlayerID string `json:"player_id"`
	TeamID   int    `json:"team_id"`
}

// ChatScope says who receives a chat line
type ChatScope string

const (
	ChatGlobal  ChatScope = "GLOBAL"
	ChatTeam    ChatScope = "TEAM"
	ChatWhisper ChatScope = "WHISPER"
)

// ChatPayload is a relayed chat line. To names the recipient of a whisper.
type ChatPayload struct {
	From   string    `json:"from"`
	Text   string    `json:"text"`
	Scope  ChatScope `json:"scope,omitempty"`
	To     string    `json:"to,omitempty"`
	TeamID int       `json:"team_id,omitempty"`
	At     time.Time `json:"at"`
}

// ItemRequestPayload names a catalog item for MATCH_BUY and LOOT_REQUEST
type ItemRequestPayload struct {
	ItemID string `json:"item_id"`
}

// ErrorPayload reports a rejected request back to a peer
type ErrorPayload struct {
	Message string `json:"message"`
}
