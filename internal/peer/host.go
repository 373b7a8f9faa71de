package peer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ernie/shoot-or-shield/internal/auth"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/match"
)

var (
	ErrHandshakeRequired = errors.New("handshake required")
	ErrMatchInProgress   = errors.New("match in progress")
	ErrNoMatch           = errors.New("no match running")
)

// HostConfig configures a hosted room
type HostConfig struct {
	Host     domain.Combatant
	Settings domain.Settings
	// Match carries timings, clock, RNG and AI for every engine the room
	// starts. Its id, mode and settings are filled in at start.
	Match match.Config
	// Tickets, when set, gates handshakes into private rooms
	Tickets *auth.Service
	// OnMatchEnd is called once per finished match
	OnMatchEnd func(*domain.MatchSummary)
}

// HostSession is the authoritative end of a multiplayer room. It owns the
// lobby and the engine; clients only ever see what it sends them.
type HostSession struct {
	cfg  HostConfig
	tr   Transport
	room *match.Room

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	engine   *match.Engine
	running  bool
	reported map[string]bool
	peers    map[string]bool
	chat     []domain.ChatPayload
	closed   bool
	updates  chan struct{}
	events   chan domain.Event
}

// NewHostSession opens a room for cfg.Host on tr
func NewHostSession(cfg HostConfig, tr Transport) *HostSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &HostSession{
		cfg:      cfg,
		tr:       tr,
		room:     match.NewRoom(cfg.Host, cfg.Settings, nil),
		ctx:      ctx,
		cancel:   cancel,
		reported: make(map[string]bool),
		peers:    make(map[string]bool),
		updates:  make(chan struct{}, 1),
		events:   make(chan domain.Event, 100),
	}
}

// Room returns the lobby
func (h *HostSession) Room() *match.Room {
	return h.room
}

// Engine returns the current or last engine, nil before the first start
func (h *HostSession) Engine() *match.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

// Updates signals after any lobby or match change the host should redraw
func (h *HostSession) Updates() <-chan struct{} {
	return h.updates
}

// Events carries match events from every engine the room runs, plus chat.
// It is never closed.
func (h *HostSession) Events() <-chan domain.Event {
	return h.events
}

func (h *HostSession) emit(ev domain.Event) {
	select {
	case h.events <- ev:
	default:
		// Channel full, drop event
	}
}

func (h *HostSession) notify() {
	select {
	case h.updates <- struct{}{}:
	default:
	}
}

// Run processes transport events until the transport closes or ctx ends
func (h *HostSession) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case ev, ok := <-h.tr.Events():
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h *HostSession) handle(ev Event) {
	switch ev.Kind {
	case EventConnect:
		log.Printf("Peer %s connected", ev.PeerID)
	case EventDisconnect:
		log.Printf("Peer %s disconnected", ev.PeerID)
		h.dropPeer(ev.PeerID)
	case EventMessage:
		if err := h.handlePacket(ev.PeerID, ev.Packet); err != nil {
			h.sendError(ev.PeerID, err)
		}
	}
}

func (h *HostSession) handlePacket(from string, p domain.Packet) error {
	if p.Type == domain.PacketHandshake {
		var hs domain.HandshakePayload
		if err := p.Decode(&hs); err != nil {
			return err
		}
		return h.join(from, hs)
	}

	h.mu.Lock()
	joined := h.peers[from]
	h.mu.Unlock()
	if !joined {
		return ErrHandshakeRequired
	}

	switch p.Type {
	case domain.PacketPlayerReady:
		var r domain.PlayerReadyPayload
		if err := p.Decode(&r); err != nil {
			return err
		}
		if err := h.room.SetReady(from, r.Ready); err != nil {
			return err
		}
		h.broadcastLobby()
	case domain.PacketSwitchTeam:
		var s domain.SwitchTeamPayload
		if err := p.Decode(&s); err != nil {
			return err
		}
		return h.switchTeam(from, s.PlayerID, s.TeamID)
	case domain.PacketKick:
		var k domain.KickPayload
		if err := p.Decode(&k); err != nil {
			return err
		}
		return h.kick(from, k.PlayerID)
	case domain.PacketLobbySettings:
		var s domain.Settings
		if err := p.Decode(&s); err != nil {
			return err
		}
		return h.updateSettings(from, s)
	case domain.PacketStartGame:
		return h.start(from)
	case domain.PacketCommitMove:
		var m domain.CommitMovePayload
		if err := p.Decode(&m); err != nil {
			return err
		}
		return h.commit(from, m)
	case domain.PacketMatchBuy:
		var r domain.ItemRequestPayload
		if err := p.Decode(&r); err != nil {
			return err
		}
		return h.withEngine(func(e *match.Engine) error { return e.Buy(from, r.ItemID) })
	case domain.PacketLootRequest:
		var r domain.ItemRequestPayload
		if err := p.Decode(&r); err != nil {
			return err
		}
		return h.withEngine(func(e *match.Engine) error { return e.Loot(from, r.ItemID) })
	case domain.PacketChat:
		var c domain.ChatPayload
		if err := p.Decode(&c); err != nil {
			return err
		}
		return h.relayChat(from, c)
	case domain.PacketLeave:
		h.dropPeer(from)
	default:
		log.Printf("Warning: ignoring %s packet from %s", p.Type, from)
	}
	return nil
}

// join admits a handshaking peer to the lobby
func (h *HostSession) join(peerID string, hs domain.HandshakePayload) error {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if running {
		return ErrMatchInProgress
	}
	if h.cfg.Tickets != nil && h.room.Settings().Private {
		if _, err := h.cfg.Tickets.ValidateTicket(hs.Ticket, h.room.Code()); err != nil {
			return err
		}
	}

	c, err := h.room.Join(joiner(peerID, hs))
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.peers[peerID] = true
	h.mu.Unlock()
	log.Printf("Room %s: %s joined as %s", h.room.Code(), c.Name, peerID)
	h.emit(domain.Event{Type: domain.EventPlayerJoin, Timestamp: time.Now(), Data: c})
	h.broadcastLobby()
	return nil
}

func joiner(peerID string, hs domain.HandshakePayload) domain.Combatant {
	p := domain.Profile{
		ID:          peerID,
		Name:        hs.Name,
		Level:       max(1, hs.Level),
		Elo:         hs.Elo,
		CharacterID: hs.CharacterID,
		Loadout:     hs.Loadout,
	}
	if p.Name == "" {
		p.Name = "Player"
	}
	return match.FromProfile(p)
}

// dropPeer handles a peer leaving or losing its connection: removed from
// the lobby, or forfeited if a match is running
func (h *HostSession) dropPeer(peerID string) {
	h.mu.Lock()
	if !h.peers[peerID] {
		h.mu.Unlock()
		return
	}
	delete(h.peers, peerID)
	eng, running := h.engine, h.running
	h.mu.Unlock()

	if running {
		if err := eng.Leave(peerID); err != nil {
			log.Printf("Warning: forfeiting %s: %v", peerID, err)
		}
	}
	h.room.Remove(peerID)
	h.broadcastLobby()
}

func (h *HostSession) switchTeam(requester, target string, team int) error {
	if h.isRunning() {
		return ErrMatchInProgress
	}
	if err := h.room.SwitchTeam(requester, target, team); err != nil {
		return err
	}
	h.broadcastLobby()
	return nil
}

func (h *HostSession) kick(requester, target string) error {
	if h.isRunning() {
		return ErrMatchInProgress
	}
	if err := h.room.Kick(requester, target); err != nil {
		return err
	}
	if pkt, err := domain.NewPacket(domain.PacketKick, HostID, domain.KickPayload{PlayerID: target, Reason: "Kicked by host"}); err == nil {
		h.tr.Send(target, pkt)
	}
	h.mu.Lock()
	delete(h.peers, target)
	h.mu.Unlock()
	h.broadcastLobby()
	return nil
}

func (h *HostSession) updateSettings(requester string, s domain.Settings) error {
	if h.isRunning() {
		return ErrMatchInProgress
	}
	if err := h.room.UpdateSettings(requester, s); err != nil {
		return err
	}
	h.broadcastLobby()
	return nil
}

// start builds an engine from the lobby roster and begins the match
func (h *HostSession) start(requester string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return match.ErrClosed
	}
	if h.running {
		h.mu.Unlock()
		return match.ErrAlreadyStarted
	}
	prev := h.engine
	h.mu.Unlock()

	// the previous match is over; closing it releases its runner and relays
	if prev != nil {
		prev.Close()
	}

	roster, err := h.room.Start(requester)
	if err != nil {
		return err
	}
	cfg := h.cfg.Match
	cfg.MatchID = ""
	cfg.Mode = domain.ModeMultiplayer
	cfg.Settings = h.room.Settings()
	eng, err := match.NewEngine(cfg, roster)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.engine = eng
	h.running = true
	h.mu.Unlock()

	snapshots, unsubscribe := eng.Subscribe()
	h.wg.Add(3)
	go func() {
		defer h.wg.Done()
		eng.Run(h.ctx)
	}()
	go func() {
		defer h.wg.Done()
		defer unsubscribe()
		h.syncLoop(eng, snapshots)
	}()
	go func() {
		defer h.wg.Done()
		h.relayEvents(eng)
	}()

	h.broadcastLobby()
	if pkt, err := domain.NewPacket(domain.PacketStartGame, HostID, domain.StartGamePayload{MatchID: eng.ID(), Settings: cfg.Settings}); err == nil {
		h.tr.Broadcast(pkt)
	}
	log.Printf("Room %s: match %s starting", h.room.Code(), eng.ID())
	return eng.Start()
}

// syncLoop mirrors every published snapshot to the peers until the
// engine closes
func (h *HostSession) syncLoop(eng *match.Engine, snapshots <-chan domain.Snapshot) {
	for {
		select {
		case s := <-snapshots:
			h.broadcastState(eng, s)
		case <-eng.Done():
			select {
			case s := <-snapshots:
				h.broadcastState(eng, s)
			default:
			}
			h.mu.Lock()
			if h.engine == eng {
				h.running = false
			}
			h.mu.Unlock()
			return
		}
	}
}

// relayEvents copies engine events onto the room's event channel until the
// engine closes
func (h *HostSession) relayEvents(eng *match.Engine) {
	for {
		select {
		case ev := <-eng.Events():
			h.emit(ev)
		case <-eng.Done():
			for {
				select {
				case ev := <-eng.Events():
					h.emit(ev)
				default:
					return
				}
			}
		}
	}
}

func (h *HostSession) broadcastState(eng *match.Engine, s domain.Snapshot) {
	h.mu.Lock()
	peers := make([]string, 0, len(h.peers))
	for id := range h.peers {
		peers = append(peers, id)
	}
	current := h.engine == eng
	report := s.Summary != nil && !h.reported[s.MatchID]
	if report {
		h.reported[s.MatchID] = true
		if current {
			h.running = false
		}
	}
	h.mu.Unlock()
	if !current {
		peers = nil
	}

	for _, id := range peers {
		pkt, err := domain.NewPacket(domain.PacketGameStateSync, HostID, eng.SnapshotFor(id))
		if err != nil {
			log.Printf("Warning: encoding snapshot: %v", err)
			return
		}
		if err := h.tr.Send(id, pkt); err != nil {
			log.Printf("Warning: sync to %s failed: %v", id, err)
		}
	}
	if report {
		log.Printf("Room %s: match %s finished, team %d wins", h.room.Code(), s.MatchID, s.Summary.WinnerTeam)
		if h.cfg.OnMatchEnd != nil {
			h.cfg.OnMatchEnd(s.Summary)
		}
	}
	h.notify()
}

func (h *HostSession) commit(from string, m domain.CommitMovePayload) error {
	return h.withEngine(func(e *match.Engine) error {
		// a move addressed to an earlier round arrived late
		if m.Round != 0 && m.Round != e.Snapshot().Round {
			return match.ErrWrongPhase
		}
		return e.Commit(from, m.Action, m.Intensity)
	})
}

func (h *HostSession) withEngine(fn func(*match.Engine) error) error {
	h.mu.Lock()
	eng, running := h.engine, h.running
	h.mu.Unlock()
	if !running {
		return ErrNoMatch
	}
	return fn(eng)
}

func (h *HostSession) isRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// member finds a combatant in the running match, or in the lobby between
// matches
func (h *HostSession) member(id string) (domain.Combatant, bool) {
	players := h.room.Players()
	h.mu.Lock()
	if h.running && h.engine != nil {
		eng := h.engine
		h.mu.Unlock()
		players = eng.Snapshot().Players
	} else {
		h.mu.Unlock()
	}
	for _, c := range players {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Combatant{}, false
}

// relayChat delivers a chat line by scope: everyone, the sender's team,
// or one whispered recipient. Only global lines reach the event stream.
func (h *HostSession) relayChat(from string, msg domain.ChatPayload) error {
	if msg.Text == "" {
		return nil
	}
	sender, ok := h.member(from)
	if !ok {
		return match.ErrUnknownCombatant
	}
	msg.From = sender.Name
	msg.At = time.Now()
	if msg.Scope == "" {
		msg.Scope = domain.ChatGlobal
	}

	var audience func(id string) bool
	switch msg.Scope {
	case domain.ChatTeam:
		msg.TeamID = sender.TeamID
		audience = func(id string) bool {
			c, ok := h.member(id)
			return ok && c.TeamID == sender.TeamID
		}
	case domain.ChatWhisper:
		if _, ok := h.member(msg.To); !ok || msg.To == from {
			return match.ErrUnknownCombatant
		}
		audience = func(id string) bool { return id == from || id == msg.To }
	case domain.ChatGlobal:
		audience = func(string) bool { return true }
	default:
		return fmt.Errorf("unknown chat scope %q", msg.Scope)
	}

	toHost := audience(h.hostID())
	h.mu.Lock()
	if toHost {
		h.chat = append(h.chat, msg)
	}
	peers := make([]string, 0, len(h.peers))
	for id := range h.peers {
		peers = append(peers, id)
	}
	var matchID string
	if h.engine != nil {
		matchID = h.engine.ID()
	}
	h.mu.Unlock()

	if msg.Scope == domain.ChatGlobal {
		h.emit(domain.Event{Type: domain.EventChat, MatchID: matchID, Timestamp: msg.At, Data: msg})
	}
	pkt, err := domain.NewPacket(domain.PacketChat, HostID, msg)
	if err != nil {
		return err
	}
	for _, id := range peers {
		if audience(id) {
			h.tr.Send(id, pkt)
		}
	}
	h.notify()
	return nil
}

// broadcastLobby sends each peer the roster with its own id filled in
func (h *HostSession) broadcastLobby() {
	h.mu.Lock()
	peers := make([]string, 0, len(h.peers))
	for id := range h.peers {
		peers = append(peers, id)
	}
	h.mu.Unlock()

	u := h.room.Update()
	for _, id := range peers {
		u.YourID = id
		pkt, err := domain.NewPacket(domain.PacketLobbyUpdate, HostID, u)
		if err != nil {
			log.Printf("Warning: encoding lobby update: %v", err)
			return
		}
		h.tr.Send(id, pkt)
	}
	h.notify()
}

func (h *HostSession) sendError(peerID string, err error) {
	log.Printf("Peer %s: %v", peerID, err)
	if pkt, perr := domain.NewPacket(domain.PacketError, HostID, domain.ErrorPayload{Message: err.Error()}); perr == nil {
		h.tr.Send(peerID, pkt)
	}
}

// --- Host player actions ---

func (h *HostSession) hostID() string {
	return h.cfg.Host.ID
}

// Lobby returns the roster as the host sees it
func (h *HostSession) Lobby() domain.LobbyUpdatePayload {
	u := h.room.Update()
	u.YourID = h.hostID()
	return u
}

// Snapshot returns the match as the host player sees it
func (h *HostSession) Snapshot() (domain.Snapshot, bool) {
	eng := h.Engine()
	if eng == nil {
		return domain.Snapshot{}, false
	}
	return eng.SnapshotFor(h.hostID()), true
}

// Chat returns the chat history
func (h *HostSession) Chat() []domain.ChatPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.ChatPayload, len(h.chat))
	copy(out, h.chat)
	return out
}

// Start begins a match with the current lobby
func (h *HostSession) Start() error {
	return h.start(h.hostID())
}

// Commit locks the host player's move
func (h *HostSession) Commit(action domain.Action, intensity int) error {
	return h.withEngine(func(e *match.Engine) error { return e.Commit(h.hostID(), action, intensity) })
}

// Buy purchases for the host player during SHOPPING
func (h *HostSession) Buy(itemID string) error {
	return h.withEngine(func(e *match.Engine) error { return e.Buy(h.hostID(), itemID) })
}

// Loot takes an item from the host player's defeated opponent
func (h *HostSession) Loot(itemID string) error {
	return h.withEngine(func(e *match.Engine) error { return e.Loot(h.hostID(), itemID) })
}

// Kick removes a player from the lobby
func (h *HostSession) Kick(target string) error {
	return h.kick(h.hostID(), target)
}

// SwitchTeam moves a player to another team
func (h *HostSession) SwitchTeam(target string, team int) error {
	return h.switchTeam(h.hostID(), target, team)
}

// UpdateSettings changes the lobby settings
func (h *HostSession) UpdateSettings(s domain.Settings) error {
	return h.updateSettings(h.hostID(), s)
}

// Say sends a chat line from the host player to everyone
func (h *HostSession) Say(text string) error {
	return h.relayChat(h.hostID(), domain.ChatPayload{Text: text})
}

// SayTeam sends a chat line from the host player to its own team
func (h *HostSession) SayTeam(text string) error {
	return h.relayChat(h.hostID(), domain.ChatPayload{Text: text, Scope: domain.ChatTeam})
}

// Whisper sends a chat line from the host player to one player
func (h *HostSession) Whisper(to, text string) error {
	return h.relayChat(h.hostID(), domain.ChatPayload{Text: text, Scope: domain.ChatWhisper, To: to})
}

// Close is the host leaving: clients are told the room is gone, the match
// is torn down and the transport closed
func (h *HostSession) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	eng := h.engine
	h.mu.Unlock()

	log.Printf("Room %s: closing", h.room.Code())
	if pkt, err := domain.NewPacket(domain.PacketLobbyClosed, HostID, nil); err == nil {
		h.tr.Broadcast(pkt)
	}
	if eng != nil {
		eng.Close()
	}
	h.cancel()
	h.wg.Wait()
	h.tr.Close()
}
