package peer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ernie/shoot-or-shield/internal/auth"
	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/match"
)

type neverRNG struct{}

func (neverRNG) Float64() float64 { return 0.999 }

var fastTimings = match.Timings{
	Intro:       time.Second,
	Shopping:    time.Second,
	Resolution:  time.Second,
	Preparation: time.Second,
	RoundOver:   time.Second,
}

func hostCombatant() domain.Combatant {
	return match.FromProfile(domain.Profile{ID: "h", Name: "Host", Level: 1, Elo: 1200})
}

type harness struct {
	t      *testing.T
	clock  *clockwork.FakeClock
	net    *MemoryHost
	host   *HostSession
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	summaries []*domain.MatchSummary
}

func newHarness(t *testing.T, settings domain.Settings, mutate func(*HostConfig)) *harness {
	t.Helper()
	h := &harness{t: t, clock: clockwork.NewFakeClock(), net: NewMemoryHost()}
	if settings.TimeFormat == "" {
		settings.TimeFormat = domain.FormatBullet
	}
	cfg := HostConfig{
		Host:     hostCombatant(),
		Settings: settings,
		Match:    match.Config{Timings: fastTimings, Clock: h.clock, RNG: neverRNG{}},
		OnMatchEnd: func(s *domain.MatchSummary) {
			h.mu.Lock()
			h.summaries = append(h.summaries, s)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.host = NewHostSession(cfg, h.net)
	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.host.Run(h.ctx)
	t.Cleanup(func() {
		h.cancel()
		h.host.Close()
	})
	return h
}

type joined struct {
	session *ClientSession
	result  chan error

	mu        sync.Mutex
	summaries []*domain.MatchSummary
	selfIDs   []string
}

func (h *harness) join(id string, hello domain.HandshakePayload) *joined {
	h.t.Helper()
	tr, err := h.net.Connect(id)
	if err != nil {
		h.t.Fatalf("connect %s: %v", id, err)
	}
	j := &joined{result: make(chan error, 1)}
	j.session = NewClientSession(tr, hello, func(s *domain.MatchSummary, self string) {
		j.mu.Lock()
		j.summaries = append(j.summaries, s)
		j.selfIDs = append(j.selfIDs, self)
		j.mu.Unlock()
	})
	go func() { j.result <- j.session.Run(h.ctx) }()
	return j
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// step advances the host engine deterministically
func (h *harness) step(d time.Duration) {
	h.clock.Advance(d)
	h.host.Engine().Poll()
}

func (h *harness) hostSub() domain.SubPhase {
	s, _ := h.host.Snapshot()
	return s.SubPhase
}

func TestClientJoinsSmallerTeam(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match1v1}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest", Level: 2})

	waitUntil(t, "lobby update", func() bool { return len(c.session.Lobby().Players) == 2 })
	if c.session.SelfID() != "c1" {
		t.Fatalf("self id %q", c.session.SelfID())
	}
	lobby := c.session.Lobby()
	if lobby.HostID != "h" || lobby.RoomCode != h.host.Room().Code() {
		t.Fatalf("lobby %+v", lobby)
	}
	for _, p := range lobby.Players {
		if p.ID == "c1" {
			if p.TeamID != match.Team2 || p.IsReady {
				t.Fatalf("joiner %+v", p)
			}
			if p.Gun != catalog.Item(catalog.StarterGun) {
				t.Fatal("decoded loadout not re-bound to the catalog")
			}
		}
	}

	c2 := h.join("c2", domain.HandshakePayload{Name: "Late"})
	waitUntil(t, "room full error", func() bool { return c2.session.LastError() != "" })
	if c2.session.LastError() != match.ErrRoomFull.Error() {
		t.Fatalf("error %q", c2.session.LastError())
	}
}

func TestMultiplayerMatchToPostMatch(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match1v1, MaxRounds: 3}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest", Elo: 1200})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })

	if err := h.host.Start(); !errors.Is(err, match.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	c.session.Ready(true)
	waitUntil(t, "ready", func() bool {
		for _, p := range h.host.Lobby().Players {
			if p.ID == "c1" {
				return p.IsReady
			}
		}
		return false
	})
	if err := h.host.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, "client in combat", func() bool { return c.session.Phase() == domain.PhaseCombat })

	decision := domain.FormatBullet.Duration()
	for round := 1; round <= 2; round++ {
		h.step(fastTimings.Intro)
		h.step(fastTimings.Shopping)
		for turn := 0; turn < 2; turn++ {
			if err := h.host.Commit(domain.ActionShoot, 2); err != nil {
				t.Fatalf("round %d turn %d commit: %v", round, turn, err)
			}
			h.step(decision)
			h.step(fastTimings.Resolution)
			if turn == 0 {
				h.step(fastTimings.Preparation)
			}
		}
		if round == 1 {
			if h.hostSub() != domain.SubRoundOver {
				t.Fatalf("round 1 ended in %s", h.hostSub())
			}
			h.step(fastTimings.RoundOver)
		}
	}

	s, _ := h.host.Snapshot()
	if s.Phase != domain.PhasePostMatch || s.Summary.WinnerTeam != match.Team1 {
		t.Fatalf("host ended in %s, summary %+v", s.Phase, s.Summary)
	}
	waitUntil(t, "client summary", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.summaries) == 1
	})
	c.mu.Lock()
	out, _ := c.summaries[0].For(c.selfIDs[0])
	c.mu.Unlock()
	if out.Won || out.EloChange >= 0 {
		t.Fatalf("client outcome %+v", out)
	}
	if got := c.session.Snapshot(); got.Phase != domain.PhasePostMatch {
		t.Fatalf("client mirror in %s", got.Phase)
	}
	waitUntil(t, "host summary", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.summaries) == 1
	})
}

func TestEarlyResolveWithClientCommit(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match1v1, TimeFormat: domain.FormatTactical}, func(cfg *HostConfig) {
		cfg.Match.EarlyResolve = true
	})
	c := h.join("c1", domain.HandshakePayload{Name: "Guest"})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })
	c.session.Ready(true)
	waitUntil(t, "start", func() bool { return h.host.Start() == nil })

	h.step(fastTimings.Intro)
	h.step(fastTimings.Shopping)
	waitUntil(t, "client decision", func() bool { return c.session.Snapshot().SubPhase == domain.SubDecision })

	if err := h.host.Commit(domain.ActionShield, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.session.Commit(domain.ActionShoot, 1); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "early resolution", func() bool { return h.hostSub() == domain.SubResolution })
	s, _ := h.host.Snapshot()
	if len(s.TurnLog) != 1 || s.TurnLog[0].BAction != domain.ActionShoot {
		t.Fatalf("turn log %+v", s.TurnLog)
	}
}

func TestClientDisconnectForfeits(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match1v1}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest"})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })
	c.session.Ready(true)
	waitUntil(t, "start", func() bool { return h.host.Start() == nil })
	h.step(fastTimings.Intro)

	h.net.Disconnect("c1")
	if err := <-c.result; !errors.Is(err, ErrHostDisconnected) {
		t.Fatalf("client run returned %v", err)
	}
	if c.session.Phase() != domain.PhaseMainMenu {
		t.Fatalf("client phase %s", c.session.Phase())
	}
	waitUntil(t, "forfeit win", func() bool {
		s, _ := h.host.Snapshot()
		return s.Phase == domain.PhasePostMatch
	})
	s, _ := h.host.Snapshot()
	if s.Summary.WinnerTeam != match.Team1 {
		t.Fatalf("winner %d", s.Summary.WinnerTeam)
	}
	h.clock.Advance(time.Hour)
	if h.host.Engine().Poll() {
		t.Fatal("finished match transitioned")
	}
}

func TestKick(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match2v2}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest"})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })

	if err := h.host.Kick("c1"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if err := <-c.result; !errors.Is(err, ErrKicked) {
		t.Fatalf("client run returned %v", err)
	}
	if c.session.Phase() != domain.PhaseMainMenu || c.session.Message() != "KICKED: Kicked by host" {
		t.Fatalf("client %s %q", c.session.Phase(), c.session.Message())
	}
	if n := len(h.host.Lobby().Players); n != 1 {
		t.Fatalf("%d players after kick", n)
	}
}

func TestHostCloseEndsClients(t *testing.T) {
	h := newHarness(t, domain.Settings{}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest"})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })

	h.host.Close()
	if err := <-c.result; !errors.Is(err, ErrHostLeft) {
		t.Fatalf("client run returned %v", err)
	}
	if c.session.Message() != "HOST LEFT" {
		t.Fatalf("message %q", c.session.Message())
	}
}

func forfeitBot(t *testing.T, eng *match.Engine) {
	t.Helper()
	for _, c := range eng.Snapshot().Players {
		if c.IsBot {
			if err := eng.Forfeit(c.ID); err != nil {
				t.Fatalf("forfeit %s: %v", c.ID, err)
			}
			return
		}
	}
	t.Fatal("no bot in the roster")
}

func (h *harness) summaryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.summaries)
}

func TestRematchThenClose(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match1v1}, nil)

	if err := h.host.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	first := h.host.Engine()
	forfeitBot(t, first)
	waitUntil(t, "first summary", func() bool { return h.summaryCount() == 1 })

	if err := h.host.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	select {
	case <-first.Done():
	default:
		t.Fatal("first engine still open after the rematch started")
	}
	second := h.host.Engine()
	if second == first {
		t.Fatal("rematch reused the finished engine")
	}
	if n := len(second.Snapshot().Players); n != 2 {
		t.Fatalf("rematch roster has %d players", n)
	}
	forfeitBot(t, second)
	waitUntil(t, "second summary", func() bool { return h.summaryCount() == 2 })

	closed := make(chan struct{})
	go func() {
		h.host.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung after a second match")
	}
}

func TestClientRequestsNeedingHost(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match2v2}, nil)
	c := h.join("c1", domain.HandshakePayload{Name: "Guest"})
	waitUntil(t, "join", func() bool { return c.session.SelfID() == "c1" })

	tests := []struct {
		name string
		send func() error
		want error
	}{
		{"start", func() error { return c.session.send(domain.PacketStartGame, nil) }, match.ErrNotHost},
		{"commit before start", func() error { return c.session.Commit(domain.ActionShoot, 1) }, ErrNoMatch},
		{"switch team", func() error {
			return c.session.send(domain.PacketSwitchTeam, domain.SwitchTeamPayload{PlayerID: "c1", TeamID: 1})
		}, match.ErrNotHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatal(err)
			}
			waitUntil(t, tt.want.Error(), func() bool { return c.session.LastError() == tt.want.Error() })
		})
	}
}

func TestPacketsBeforeHandshakeRejected(t *testing.T) {
	h := newHarness(t, domain.Settings{}, nil)
	tr, err := h.net.Connect("raw")
	if err != nil {
		t.Fatal(err)
	}
	pkt, _ := domain.NewPacket(domain.PacketPlayerReady, "raw", domain.PlayerReadyPayload{Ready: true})
	tr.Send(HostID, pkt)

	select {
	case ev := <-tr.Events():
		var e domain.ErrorPayload
		if ev.Packet.Type != domain.PacketError || ev.Packet.Decode(&e) != nil || e.Message != ErrHandshakeRequired.Error() {
			t.Fatalf("got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error packet")
	}
}

func TestPrivateRoomNeedsTicket(t *testing.T) {
	tickets := auth.NewService("secret", time.Hour)
	h := newHarness(t, domain.Settings{MatchType: domain.Match2v2, Private: true}, func(cfg *HostConfig) {
		cfg.Tickets = tickets
	})

	bad := h.join("c1", domain.HandshakePayload{Name: "Crasher", Ticket: "forged"})
	waitUntil(t, "ticket rejection", func() bool { return bad.session.LastError() != "" })
	if bad.session.LastError() != auth.ErrInvalidTicket.Error() {
		t.Fatalf("error %q", bad.session.LastError())
	}

	ticket, _ := tickets.IssueTicket(h.host.Room().Code(), "Friend")
	good := h.join("c2", domain.HandshakePayload{Name: "Friend", Ticket: ticket})
	waitUntil(t, "ticketed join", func() bool { return good.session.SelfID() == "c2" })
}

func TestChatRelay(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match2v2}, nil)
	a := h.join("a", domain.HandshakePayload{Name: "Alpha"})
	b := h.join("b", domain.HandshakePayload{Name: "Bravo"})
	waitUntil(t, "joins", func() bool { return a.session.SelfID() == "a" && b.session.SelfID() == "b" })

	a.session.Say("gl hf")
	waitUntil(t, "chat", func() bool { return len(b.session.Chat()) == 1 })
	if m := b.session.Chat()[0]; m.From != "Alpha" || m.Text != "gl hf" {
		t.Fatalf("chat %+v", m)
	}
	if len(h.host.Chat()) != 1 {
		t.Fatal("host chat history not kept")
	}

	var types []string
	for len(types) < 3 {
		select {
		case ev := <-h.host.Events():
			types = append(types, ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("events so far %v", types)
		}
	}
	want := []string{domain.EventPlayerJoin, domain.EventPlayerJoin, domain.EventChat}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events %v, want %v", types, want)
		}
	}
}

func TestScopedChat(t *testing.T) {
	h := newHarness(t, domain.Settings{MatchType: domain.Match2v2}, nil)
	a := h.join("a", domain.HandshakePayload{Name: "Alpha"})
	waitUntil(t, "a joins", func() bool { return a.session.SelfID() == "a" })
	b := h.join("b", domain.HandshakePayload{Name: "Bravo"})
	waitUntil(t, "b joins", func() bool { return b.session.SelfID() == "b" })
	// host and b share team 1, a is alone on team 2

	a.session.SayTeam("flank left")
	b.session.SayTeam("hold")
	a.session.Whisper("b", "psst")
	a.session.Say("gl")

	texts := func(lines []domain.ChatPayload) []string {
		out := make([]string, len(lines))
		for i, m := range lines {
			out[i] = string(m.Scope) + ":" + m.Text
		}
		return out
	}
	tests := []struct {
		name string
		chat func() []domain.ChatPayload
		want []string
	}{
		{"a", a.session.Chat, []string{"TEAM:flank left", "WHISPER:psst", "GLOBAL:gl"}},
		{"b", b.session.Chat, []string{"TEAM:hold", "WHISPER:psst", "GLOBAL:gl"}},
		{"host", h.host.Chat, []string{"TEAM:hold", "GLOBAL:gl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waitUntil(t, "global line", func() bool {
				got := tt.chat()
				return len(got) > 0 && got[len(got)-1].Text == "gl"
			})
			got := texts(tt.chat())
			if len(got) != len(tt.want) {
				t.Fatalf("heard %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("heard %v, want %v", got, tt.want)
				}
			}
		})
	}

	a.session.Whisper("nobody", "hello?")
	waitUntil(t, "whisper error", func() bool { return a.session.LastError() == match.ErrUnknownCombatant.Error() })
}

func TestMemoryHostDropsSlowPeer(t *testing.T) {
	host := NewMemoryHost()
	defer host.Close()
	p, _ := host.Connect("slow")
	<-host.Events()

	pkt, _ := domain.NewPacket(domain.PacketChat, HostID, domain.ChatPayload{Text: "x"})
	var err error
	for i := 0; i <= memoryBuffer && err == nil; i++ {
		err = host.Send("slow", pkt)
	}
	if !errors.Is(err, ErrSlowPeer) {
		t.Fatalf("expected slow peer, got %v", err)
	}
	if ev := <-host.Events(); ev.Kind != EventDisconnect || ev.PeerID != "slow" {
		t.Fatalf("host event %+v", ev)
	}
	if err := p.Send(HostID, pkt); !errors.Is(err, ErrClosed) {
		t.Fatalf("dropped peer could still send: %v", err)
	}
	if err := host.Send("slow", pkt); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected unknown peer, got %v", err)
	}
}
