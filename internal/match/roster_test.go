package match

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/progression"
)

func TestFromProfile(t *testing.T) {
	p := progression.NewProfile("Ace", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), nil)
	p.Loadout.Gun = "nope"
	c := FromProfile(p)
	if c.Gun != catalog.Item(catalog.StarterGun) {
		t.Fatal("unknown gun did not fall back to the starter")
	}
	if c.MatchCash != catalog.MatchStartingCash || c.Health != catalog.BaseHealth {
		t.Fatalf("combatant %+v", c)
	}
	if c.Character == nil {
		t.Fatal("no character bound")
	}
}

func TestNewBot(t *testing.T) {
	b := NewBot(0, Team2, rand.New(rand.NewPCG(3, 4)))
	if b.Level != 1 || b.MaxHealth != catalog.BaseHealth || b.Elo != 1100 {
		t.Fatalf("bot %+v", b)
	}
	if !b.IsBot || !b.IsReady || b.TeamID != Team2 {
		t.Fatalf("bot flags %+v", b)
	}
}

func TestMatchupsPairByIndex(t *testing.T) {
	players := []domain.Combatant{
		combatant("a1", Team1, false), combatant("b1", Team2, false),
		combatant("a2", Team1, false), combatant("b2", Team2, false),
	}
	m := Matchups(players)
	if m["a1"] != "b1" || m["b1"] != "a1" || m["a2"] != "b2" || m["b2"] != "a2" {
		t.Fatalf("matchups %v", m)
	}
}

func TestRematchPairsSurvivors(t *testing.T) {
	players := []domain.Combatant{
		combatant("a1", Team1, false), combatant("a2", Team1, false),
		combatant("b1", Team2, false), combatant("b2", Team2, false),
	}
	current := Matchups(players)
	players[3].Health = 0

	m := Rematch(players, current)
	if m["a1"] != "b1" {
		t.Fatalf("live duel broken: %v", m)
	}
	if _, ok := m["a2"]; ok {
		t.Fatalf("a2 paired with nobody left: %v", m)
	}

	players[1].Health = 0
	players[2].Health = 0
	players[3].Health = 100
	m = Rematch(players, current)
	if m["a1"] != "b2" || m["b2"] != "a1" {
		t.Fatalf("survivors not re-paired: %v", m)
	}
}

func TestCollectAndPair(t *testing.T) {
	roster := []domain.Combatant{
		combatant("h", Team1, false), combatant("b", Team2, true),
		combatant("h2", Team1, false), combatant("dead", Team2, true),
	}
	roster[3].Health = 0
	matchups := Matchups(roster)

	duels := CollectAndPair(map[string]domain.Move{}, matchups, roster)
	if len(duels) != 1 {
		t.Fatalf("%d duels, want 1", len(duels))
	}
	d := duels[0]
	if d.A.Combatant.ID != "h" || d.B.Combatant.ID != "b" || d.AIndex != 0 || d.BIndex != 1 {
		t.Fatalf("duel %+v", d)
	}
	if d.A.Action != domain.ActionIdle || d.B.Action != domain.ActionShoot {
		t.Fatalf("defaults %s/%s", d.A.Action, d.B.Action)
	}

	moves := map[string]domain.Move{"h": {Action: domain.ActionShield, Intensity: 1}}
	again := CollectAndPair(moves, matchups, roster)
	if again[0].A.Action != domain.ActionShield {
		t.Fatalf("committed move ignored: %s", again[0].A.Action)
	}
}
