package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ernie/shoot-or-shield/internal/api"
	"github.com/ernie/shoot-or-shield/internal/auth"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/eventbus"
	"github.com/ernie/shoot-or-shield/internal/match"
	"github.com/ernie/shoot-or-shield/internal/peer"
)

// console prints snapshots as a running log: a header whenever the phase
// moves on and one line per resolved duel
type console struct {
	selfID string
	phase  domain.Phase
	sub    domain.SubPhase
	round  int
	logged int
	heard  int
}

// chat prints the lines that arrived since the last call
func (c *console) chat(lines []domain.ChatPayload) {
	for _, m := range lines[min(c.heard, len(lines)):] {
		switch m.Scope {
		case domain.ChatTeam:
			fmt.Printf("[team] %s: %s\n", m.From, m.Text)
		case domain.ChatWhisper:
			fmt.Printf("[whisper] %s: %s\n", m.From, m.Text)
		default:
			fmt.Printf("%s: %s\n", m.From, m.Text)
		}
	}
	c.heard = len(lines)
}

func (c *console) render(s domain.Snapshot) {
	if len(s.TurnLog) < c.logged {
		c.logged = 0
	}
	for _, tr := range s.TurnLog[c.logged:] {
		if tr.Description != "" {
			fmt.Printf("  %s\n", tr.Description)
		}
		for _, ev := range tr.Events {
			fmt.Printf("    * %s\n", ev)
		}
	}
	c.logged = len(s.TurnLog)

	if s.Phase == c.phase && s.SubPhase == c.sub && s.Round == c.round {
		return
	}
	c.phase, c.sub, c.round = s.Phase, s.SubPhase, s.Round

	if s.Phase != domain.PhaseCombat {
		rule()
		fmt.Printf("%s  %s\n", s.Phase, s.Message)
		return
	}
	rule()
	fmt.Printf("ROUND %d/%d  %s", s.Round, s.MaxRounds, s.SubPhase)
	if left := s.Remaining(time.Now()); left > 0 {
		fmt.Printf("  (%ds)", int(left.Round(time.Second).Seconds()))
	}
	if s.Message != "" {
		fmt.Printf("  %s", s.Message)
	}
	fmt.Println()

	self, ok := s.Player(c.selfID)
	if !ok {
		return
	}
	printCombatant("YOU", self)
	if oppID, ok := s.Matchups[c.selfID]; ok {
		if opp, ok := s.Player(oppID); ok {
			printCombatant("VS ", opp)
		}
	}
	switch s.SubPhase {
	case domain.SubShopping:
		fmt.Println("  buy <item-id> to spend match cash")
	case domain.SubDecision:
		fmt.Println("  shoot [n] | shield | idle")
	case domain.SubRoundOver:
		fmt.Println("  loot <item-id> to take gear from a defeated opponent")
	}
}

func printCombatant(label string, c domain.Combatant) {
	hp, armor := c.Display()
	status := ""
	if !c.Alive() {
		status = "  DOWN"
	}
	fmt.Printf("  %s %-12s HP %3d  AR %3d  AMMO %d/%d  SHIELD %d/%d  $%d  WINS %d%s\n",
		label, c.Name, hp, armor, c.Ammo, c.MaxAmmo, c.ShieldCharges, c.MaxShieldCharges,
		c.MatchCash, c.RoundsWon, status)
}

// fighter is whatever accepts the local player's combat input
type fighter interface {
	Commit(action domain.Action, intensity int) error
	Buy(itemID string) error
	Loot(itemID string) error
}

// soloFighter binds engine calls to the human's id
type soloFighter struct {
	eng *match.Engine
	id  string
}

func (f soloFighter) Commit(action domain.Action, intensity int) error {
	return f.eng.Commit(f.id, action, intensity)
}

func (f soloFighter) Buy(itemID string) error  { return f.eng.Buy(f.id, itemID) }
func (f soloFighter) Loot(itemID string) error { return f.eng.Loot(f.id, itemID) }

var errUnknownCommand = errors.New("unknown command")

// combatCommand handles the input shared by every mode
func combatCommand(f fighter, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	arg := func() string {
		if len(fields) > 1 {
			return fields[1]
		}
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "shoot", "s":
		n := 1
		if a := arg(); a != "" {
			v, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("burst size must be a number")
			}
			n = v
		}
		return f.Commit(domain.ActionShoot, n)
	case "shield", "b":
		return f.Commit(domain.ActionShield, 1)
	case "idle", "i":
		return f.Commit(domain.ActionIdle, 1)
	case "buy":
		return f.Buy(arg())
	case "loot":
		return f.Loot(arg())
	}
	return errUnknownCommand
}

// forwardEvents publishes events to NATS when configured. The returned
// func stops forwarding.
func (a *app) forwardEvents(ctx context.Context, events <-chan domain.Event) func() {
	pub := a.publisher()
	if pub == nil {
		return func() {}
	}
	fwd := eventbus.NewForwarder(pub)
	fwd.Forward(ctx, events)
	return func() {
		fwd.Stop()
		pub.Close()
	}
}

func cmdSolo(args []string) {
	fs := flag.NewFlagSet("solo", flag.ExitOnError)
	format := fs.String("format", string(domain.FormatRapid), "decision window: BULLET, BLITZ, RAPID or TACTICAL")
	rounds := fs.Int("rounds", 3, "rounds in the match")
	a := loadApp(fs, args)
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := a.player(ctx)
	cfg := a.matchConfig()
	cfg.Settings = domain.Settings{MaxRounds: *rounds, TimeFormat: domain.TimeFormat(strings.ToUpper(*format))}
	eng, err := match.NewSolo(cfg, match.FromProfile(p), nil)
	if err != nil {
		log.Fatalf("Failed to create match: %v", err)
	}
	defer eng.Close()

	go eng.Run(ctx)
	stop := a.forwardEvents(ctx, eng.Events())
	defer stop()
	snapshots, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start match: %v", err)
	}

	fmt.Println("Commands: shoot [n], shield, idle, buy <item>, loot <item>, quit")
	con := &console{selfID: p.ID}
	input := lines(ctx)
	for {
		select {
		case <-ctx.Done():
			eng.Leave(p.ID)
			return
		case s := <-snapshots:
			con.render(s)
			if s.Summary != nil {
				a.settle(ctx, p.ID, s.Summary, p.ID)
				return
			}
		case line, ok := <-input:
			if !ok || line == "quit" {
				eng.Leave(p.ID)
				fmt.Println("MATCH ABANDONED")
				return
			}
			if err := combatCommand(soloFighter{eng: eng, id: p.ID}, strings.Fields(line)); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func cmdHost(args []string) {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	matchType := fs.String("type", string(domain.Match1v1), "match type: 1v1, 2v2, 3v3, 4v4 or CUSTOM")
	teamSize := fs.Int("team-size", 0, "team size for CUSTOM matches")
	rounds := fs.Int("rounds", 3, "rounds in the match")
	format := fs.String("format", string(domain.FormatRapid), "decision window: BULLET, BLITZ, RAPID or TACTICAL")
	private := fs.Bool("private", false, "require a ticket to join")
	a := loadApp(fs, args)
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := a.player(ctx)
	tickets := auth.NewService(a.cfg.Auth.TicketSecret, a.cfg.Auth.TicketDuration)
	if a.cfg.Auth.TicketSecret == "" && *private {
		log.Printf("Warning: No ticket secret configured. Tickets only last for this session.")
	}

	hub := api.NewPeerHub()
	host := peer.NewHostSession(peer.HostConfig{
		Host: match.FromProfile(p),
		Settings: domain.Settings{
			MatchType:      domain.MatchType(strings.ToUpper(*matchType)),
			CustomTeamSize: *teamSize,
			MaxRounds:      *rounds,
			TimeFormat:     domain.TimeFormat(strings.ToUpper(*format)),
			Private:        *private,
		},
		Match:   a.matchConfig(),
		Tickets: tickets,
		OnMatchEnd: func(s *domain.MatchSummary) {
			a.settle(context.Background(), p.ID, s, p.ID)
		},
	}, hub)
	defer host.Close()
	go host.Run(ctx)

	router := api.NewRouter(a.store, a.profiles, host, hub, tickets)
	toHub := make(chan domain.Event, 100)
	toBus := make(chan domain.Event, 100)
	go tee(ctx, host.Events(), toHub, toBus)
	router.StartEventHub(ctx, toHub)
	stop := a.forwardEvents(ctx, toBus)
	defer stop()

	server := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Room %s listening on %s", host.Room().Code(), server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()
	defer func() {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer httpCancel()
		if err := server.Shutdown(httpCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	fmt.Printf("Room %s open. Players join with: sos join ws://<this-host>:%d/ws\n", host.Room().Code(), a.cfg.Server.HTTPPort)
	fmt.Println("Lobby: start, kick <id>, team <id> <1|2>, rounds <n>, format <f>, type <t>, invite <name>, say|tsay <text>, w <id> <text>, lobby")
	fmt.Println("Match: shoot [n], shield, idle, buy <item>, loot <item>; quit closes the room")

	con := &console{selfID: p.ID}
	input := lines(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-serverErr:
			if ok {
				log.Printf("HTTP server error: %v", err)
				return
			}
			serverErr = nil
		case <-host.Updates():
			con.chat(host.Chat())
			if s, ok := host.Snapshot(); ok {
				con.render(s)
			} else {
				printLobby(host.Lobby())
			}
		case line, ok := <-input:
			if !ok || line == "quit" {
				return
			}
			if err := hostCommand(host, tickets, line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

// hostCommand handles lobby administration and the host's own moves
func hostCommand(host *peer.HostSession, tickets *auth.Service, line string) error {
	fields := strings.Fields(line)
	arg := func(i int) string {
		if len(fields) > i {
			return fields[i]
		}
		return ""
	}
	settings := host.Room().Settings()
	switch strings.ToLower(fields[0]) {
	case "start":
		return host.Start()
	case "lobby":
		printLobby(host.Lobby())
		return nil
	case "kick":
		return host.Kick(arg(1))
	case "team":
		team, err := strconv.Atoi(arg(2))
		if err != nil {
			return fmt.Errorf("team must be 1 or 2")
		}
		return host.SwitchTeam(arg(1), team)
	case "rounds":
		n, err := strconv.Atoi(arg(1))
		if err != nil {
			return fmt.Errorf("rounds must be a number")
		}
		settings.MaxRounds = n
		return host.UpdateSettings(settings)
	case "format":
		settings.TimeFormat = domain.TimeFormat(strings.ToUpper(arg(1)))
		return host.UpdateSettings(settings)
	case "type":
		settings.MatchType = domain.MatchType(strings.ToUpper(arg(1)))
		return host.UpdateSettings(settings)
	case "invite":
		ticket, err := tickets.IssueTicket(host.Room().Code(), arg(1))
		if err != nil {
			return err
		}
		fmt.Printf("Ticket: %s\n", ticket)
		return nil
	case "say":
		return host.Say(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "tsay":
		return host.SayTeam(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "w":
		if len(fields) < 3 {
			return fmt.Errorf("usage: w <player-id> <text>")
		}
		return host.Whisper(fields[1], strings.Join(fields[2:], " "))
	}
	return combatCommand(host, fields)
}

func printLobby(u domain.LobbyUpdatePayload) {
	rule()
	visibility := "public"
	if u.Settings.Private {
		visibility = "private"
	}
	fmt.Printf("LOBBY %s  %s  %d rounds  %s  %s\n", u.RoomCode, u.Settings.MatchType, u.Settings.MaxRounds, u.Settings.TimeFormat, visibility)
	for _, team := range []int{match.Team1, match.Team2} {
		fmt.Printf("  TEAM %d\n", team)
		for _, c := range match.TeamMembers(u.Players, team) {
			mark := " "
			if c.IsReady {
				mark = "*"
			}
			role := ""
			if c.IsHost {
				role = " (host)"
			}
			if c.ID == u.YourID {
				role += " (you)"
			}
			fmt.Printf("   %s %-14s LV %-3d ELO %-5d %s%s\n", mark, c.Name, c.Level, c.Elo, c.ID, role)
		}
	}
}

func cmdJoin(args []string) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	ticket := fs.String("ticket", "", "room ticket for private rooms")
	a := loadApp(fs, args)
	defer a.close()

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sos join <ws-url> [--ticket T]")
		os.Exit(1)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := a.player(ctx)
	tr, err := peer.Dial(ctx, fs.Arg(0), *ticket)
	if err != nil {
		log.Fatalf("Failed to join: %v", err)
	}
	client := peer.NewClientSession(tr, peer.Handshake(p, *ticket), func(s *domain.MatchSummary, selfID string) {
		a.settle(context.Background(), p.ID, s, selfID)
	})
	result := make(chan error, 1)
	go func() { result <- client.Run(ctx) }()

	fmt.Println("Lobby: ready, unready, say|tsay <text>, w <id> <text>, lobby")
	fmt.Println("Match: shoot [n], shield, idle, buy <item>, loot <item>; quit leaves")

	con := &console{}
	input := lines(ctx)
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			client.Leave()
			return
		case err := <-result:
			if err != nil {
				fmt.Printf("%s (%v)\n", client.Message(), err)
			}
			return
		case <-client.Updates():
			if e := client.LastError(); e != "" && e != lastErr {
				fmt.Printf("! %s\n", e)
				lastErr = e
			}
			con.selfID = client.SelfID()
			con.chat(client.Chat())
			if client.Phase() == domain.PhaseLobbyRoom {
				printLobby(client.Lobby())
				continue
			}
			con.render(client.Snapshot())
		case line, ok := <-input:
			if !ok || line == "quit" {
				client.Leave()
				return
			}
			if err := joinCommand(client, line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func joinCommand(client *peer.ClientSession, line string) error {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "ready":
		return client.Ready(true)
	case "unready":
		return client.Ready(false)
	case "lobby":
		printLobby(client.Lobby())
		return nil
	case "say":
		return client.Say(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "tsay":
		return client.SayTeam(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "w":
		if len(fields) < 3 {
			return fmt.Errorf("usage: w <player-id> <text>")
		}
		return client.Whisper(fields[1], strings.Join(fields[2:], " "))
	}
	return combatCommand(client, fields)
}
