package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sos.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := domain.Profile{
		ID: "p1", Username: "user_ace", Name: "Ace", Level: 3, Elo: 1250, Credits: 900,
		Inventory: []string{"g1", "s1", "a1", "g2"},
		Loadout:   domain.Loadout{Gun: "g2", Shield: "s1", Armor: "a1"},
		MatchHistory: []domain.MatchRecord{
			{ID: "r1", Result: domain.ResultVictory, OpponentName: "Rogue [BOT]", EloChange: 16},
		},
	}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ace" || got.Credits != 900 || got.Loadout.Gun != "g2" || len(got.Inventory) != 4 {
		t.Fatalf("profile %+v", got)
	}
	if len(got.MatchHistory) != 1 || got.MatchHistory[0].OpponentName != "Rogue [BOT]" {
		t.Fatalf("history %+v", got.MatchHistory)
	}

	p.Credits = 50
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetProfile(ctx, "p1")
	if got.Credits != 50 {
		t.Fatalf("credits %d after update", got.Credits)
	}
}

func TestGetProfileMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetProfile(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, p := range []domain.Profile{
		{ID: "a", Name: "A", Elo: 1200, MatchesWon: 3},
		{ID: "b", Name: "B", Elo: 1400},
		{ID: "c", Name: "C", Elo: 1200, MatchesWon: 5},
	} {
		if err := s.SaveProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	board, err := s.GetLeaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"b", "c"}
	if len(board) != len(want) {
		t.Fatalf("%d entries", len(board))
	}
	for i, id := range want {
		if board[i].ID != id || board[i].Rank != i+1 {
			t.Fatalf("entry %d = %+v, want %s", i, board[i], id)
		}
	}

	all, err := s.GetProfiles(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("profiles %d, err %v", len(all), err)
	}
	if err := s.DeleteProfile(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProfile(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatal("deleted profile still present")
	}
}

func TestRecordMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2"} {
		m := &domain.MatchSummary{
			MatchID: id, Mode: domain.ModeMultiplayer, WinnerTeam: 1, Rounds: 3,
			EndedAt:  base.Add(time.Duration(i) * time.Hour),
			Outcomes: []domain.CombatantOutcome{{ID: "p1", Name: "Ace", TeamID: 1, Won: true, EloChange: 16}},
		}
		if err := s.RecordMatch(ctx, m); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	dup := &domain.MatchSummary{MatchID: "m1", Mode: domain.ModeSolo, EndedAt: base}
	if err := s.RecordMatch(ctx, dup); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}

	recent, err := s.GetRecentMatches(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].MatchID != "m2" {
		t.Fatalf("recent %+v", recent)
	}
	if recent[1].Mode != domain.ModeMultiplayer {
		t.Fatal("duplicate overwrote the first record")
	}
	if out, ok := recent[0].For("p1"); !ok || !out.Won {
		t.Fatalf("outcome %+v", out)
	}
}

func TestPackCompresses(t *testing.T) {
	p := domain.Profile{ID: "x"}
	for range 50 {
		p.Inventory = append(p.Inventory, "g1")
	}
	blob, err := pack(p)
	if err != nil {
		t.Fatal(err)
	}
	var back domain.Profile
	if err := unpack(blob, &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Inventory) != 50 {
		t.Fatalf("inventory %d", len(back.Inventory))
	}
	if err := unpack([]byte("not zstd"), &back); err == nil {
		t.Fatal("garbage decoded")
	}
}
