package storage

import (
	"fmt"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanProfile scans a profile data blob
func scanProfile(row scanner) (*domain.Profile, error) {
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return nil, err
	}
	var p domain.Profile
	if err := unpack(blob, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &p, nil
}

// scanMatch scans a match summary blob
func scanMatch(row scanner) (*domain.MatchSummary, error) {
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return nil, err
	}
	var m domain.MatchSummary
	if err := unpack(blob, &m); err != nil {
		return nil, fmt.Errorf("decoding match: %w", err)
	}
	return &m, nil
}
