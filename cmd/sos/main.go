// sos - Shoot or Shield, a turn-based tactical duel game
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/shoot-or-shield/internal/ai"
	"github.com/ernie/shoot-or-shield/internal/config"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/eventbus"
	"github.com/ernie/shoot-or-shield/internal/match"
	"github.com/ernie/shoot-or-shield/internal/profile"
	"github.com/ernie/shoot-or-shield/internal/storage"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "solo":
		cmdSolo(os.Args[2:])
	case "host":
		cmdHost(os.Args[2:])
	case "join":
		cmdJoin(os.Args[2:])
	case "profile":
		cmdProfile(os.Args[2:])
	case "history":
		cmdHistory(os.Args[2:])
	case "tasks":
		cmdTasks(os.Args[2:])
	case "claim":
		cmdClaim(os.Args[2:])
	case "shop":
		cmdShop(os.Args[2:])
	case "leaderboard":
		cmdLeaderboard(os.Args[2:])
	case "version":
		fmt.Printf("sos %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: sos <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  solo                                Play a match against a bot")
	fmt.Println("  host [--type 2v2] [--rounds N] [--format RAPID] [--private]")
	fmt.Println("                                      Open a room for other players")
	fmt.Println("  join <ws-url> [--ticket T]          Join a hosted room")
	fmt.Println("  profile [--name N] [--character ID] Show or edit your profile")
	fmt.Println("  history [--recent N]                Show your recent matches (default: 10)")
	fmt.Println("  tasks                               Show today's tasks")
	fmt.Println("  claim <task-id>                     Claim a completed task's reward")
	fmt.Println("  shop [buy|equip <item-id>]          Browse, buy and equip gear")
	fmt.Println("  leaderboard [--top N]               Show top local profiles (default: 10)")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default <user config dir>/shoot-or-shield/config.yml)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sos solo")
	fmt.Println("  sos host --type 2v2 --private")
	fmt.Println("  sos join ws://192.168.1.20:7777/ws")
	fmt.Println("  sos shop buy g3")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(dir, "shoot-or-shield", "config.yml")
}

// app bundles what every command needs: config, the local store and the
// profile service
type app struct {
	cfg      *config.Config
	store    *storage.Store
	profiles *profile.Service
	clock    clockwork.Clock
}

// openApp loads configuration and opens storage. Failures are fatal.
func openApp(configPath string) *app {
	if path := config.LoadEnv(".env", filepath.Join(filepath.Dir(configPath), ".env")); path != "" {
		log.Printf("Loaded environment from %s", path)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	var remote profile.Remote
	if cfg.RemoteSync.Enabled {
		s3r, err := profile.NewS3Remote(context.Background(), cfg.RemoteSync)
		if err != nil {
			log.Printf("Warning: remote sync disabled: %v", err)
		} else {
			remote = s3r
			log.Printf("Remote sync to bucket %s enabled", cfg.RemoteSync.Bucket)
		}
	}

	clock := clockwork.NewRealClock()
	profiles := profile.NewService(store, remote, clock, nil)
	if err := profiles.Start(); err != nil {
		log.Fatalf("Failed to start profile service: %v", err)
	}
	return &app{cfg: cfg, store: store, profiles: profiles, clock: clock}
}

func (a *app) close() {
	a.profiles.Stop()
	a.store.Close()
}

// loadApp parses --config plus any extra flags the caller registered on fs
func loadApp(fs *flag.FlagSet, args []string) *app {
	configPath := fs.String("config", defaultConfigPath(), "path to configuration file")
	fs.Parse(args)
	return openApp(*configPath)
}

// player returns the current profile after the daily login rollover,
// creating one on first run
func (a *app) player(ctx context.Context) domain.Profile {
	p, err := a.profiles.Current(ctx)
	if errors.Is(err, profile.ErrNoProfile) {
		name := prompt("No profile yet. Callsign: ")
		if name == "" {
			name = "Rookie"
		}
		created, err := a.profiles.Create(ctx, name)
		if err != nil {
			log.Fatalf("Failed to create profile: %v", err)
		}
		p = &created
	} else if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	loggedIn, rolled, err := a.profiles.Login(ctx, p.ID)
	if err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}
	if rolled {
		fmt.Printf("Daily login reward collected. Credits: %d\n", loggedIn.Credits)
	}
	return loggedIn
}

// matchConfig builds the engine settings shared by solo and hosted matches
func (a *app) matchConfig() match.Config {
	var primary ai.Provider
	if a.cfg.AI.Endpoint != "" {
		primary = ai.NewHTTPProvider(a.cfg.AI.Endpoint, a.cfg.AI.APIKey)
	}
	return match.Config{
		Timings:      a.cfg.Match.Timings,
		EarlyResolve: a.cfg.Match.EarlyResolve,
		Clock:        a.clock,
		AI:           ai.NewGuarded(primary, a.cfg.AI.Timeout),
	}
}

// publisher connects to NATS when configured. A nil publisher means match
// events stay local.
func (a *app) publisher() *eventbus.Publisher {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	pub, err := eventbus.Connect(a.cfg.NATS.URL, a.cfg.NATS.SubjectPrefix)
	if err != nil {
		log.Printf("Warning: match events will not be published: %v", err)
		return nil
	}
	return pub
}

// settle records a finished match and folds it into the player's profile
func (a *app) settle(ctx context.Context, profileID string, summary *domain.MatchSummary, selfID string) {
	if err := a.store.RecordMatch(ctx, summary); err != nil {
		log.Printf("Warning: recording match %s: %v", summary.MatchID, err)
	}
	p, res, err := a.profiles.ApplyMatch(ctx, profileID, summary, selfID)
	if err != nil {
		log.Printf("Warning: applying match to profile: %v", err)
		return
	}
	printResult(p, res)
}

// tee copies events to every output until in closes or ctx ends
func tee(ctx context.Context, in <-chan domain.Event, outs ...chan domain.Event) {
	defer func() {
		for _, out := range outs {
			close(out)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			for _, out := range outs {
				select {
				case out <- ev:
				default:
				}
			}
		}
	}
}

var stdin = bufio.NewReader(os.Stdin)

// interactive reports whether stdin is a terminal
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt prints label when stdin is a terminal and reads one line
func prompt(label string) string {
	if interactive() {
		fmt.Print(label)
	}
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

// lines streams stdin lines until EOF
func lines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			line, err := stdin.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// rule prints a divider as wide as the terminal
func rule() {
	width := 60
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w, 100)
	}
	fmt.Println(strings.Repeat("-", width))
}
