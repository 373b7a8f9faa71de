package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// pack marshals v to JSON and compresses it
func pack(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, nil), nil
}

func unpack(blob []byte, v any) error {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// --- Profile methods ---

// SaveProfile creates or replaces a profile
func (s *Store) SaveProfile(ctx context.Context, p domain.Profile) error {
	blob, err := pack(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, name, level, elo, matches_won, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			name = excluded.name,
			level = excluded.level,
			elo = excluded.elo,
			matches_won = excluded.matches_won,
			updated_at = excluded.updated_at,
			data = excluded.data
	`, p.ID, p.Username, p.Name, p.Level, p.Elo, p.MatchesWon, formatTimestamp(time.Now()), blob)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile returns a profile by id, or ErrNotFound
func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT data FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetProfiles returns every stored profile, most recently updated first
func (s *Store) GetProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM profiles ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	return err
}

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Elo        int    `json:"elo"`
	MatchesWon int    `json:"matchesWon"`
}

// GetLeaderboard returns the top profiles by ELO
func (s *Store) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, level, elo, matches_won FROM profiles
		ORDER BY elo DESC, matches_won DESC, name
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Level, &e.Elo, &e.MatchesWon); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Match methods ---

// RecordMatch stores a finished match summary. Recording the same match
// twice keeps the first copy.
func (s *Store) RecordMatch(ctx context.Context, m *domain.MatchSummary) error {
	blob, err := pack(m)
	if err != nil {
		return fmt.Errorf("encoding match: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (id, mode, winner_team, rounds, ended_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.MatchID, string(m.Mode), m.WinnerTeam, m.Rounds, formatTimestamp(m.EndedAt), blob)
	if err != nil {
		return fmt.Errorf("recording match %s: %w", m.MatchID, err)
	}
	return nil
}

// GetRecentMatches returns the latest match summaries, newest first
func (s *Store) GetRecentMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM matches ORDER BY ended_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.MatchSummary
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}
