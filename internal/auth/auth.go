package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidTicket = errors.New("invalid or expired room ticket")
	ErrWrongRoom     = errors.New("ticket issued for another room")
)

// Claims represents the JWT claims of a room ticket
type Claims struct {
	RoomCode string `json:"room"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Service issues and checks the tickets that gate private rooms
type Service struct {
	secret         []byte
	ticketDuration time.Duration
	clock          clockwork.Clock
}

// NewService creates a new ticket service. An empty secret gets a random
// one, so tickets only validate against the process that issued them.
func NewService(secret string, ticketDuration time.Duration) *Service {
	return NewServiceWithClock(secret, ticketDuration, clockwork.NewRealClock())
}

// NewServiceWithClock is NewService with an injected clock
func NewServiceWithClock(secret string, ticketDuration time.Duration, clock clockwork.Clock) *Service {
	if ticketDuration == 0 {
		ticketDuration = time.Hour
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	return &Service{
		secret:         key,
		ticketDuration: ticketDuration,
		clock:          clock,
	}
}

// IssueTicket creates a signed ticket admitting name to the room
func (s *Service) IssueTicket(roomCode, name string) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		RoomCode: roomCode,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ticketDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateTicket checks a ticket's signature and expiry and that it was
// issued for roomCode
func (s *Service) ValidateTicket(ticket, roomCode string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(ticket, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock.Now))

	if err != nil || !token.Valid {
		return nil, ErrInvalidTicket
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidTicket
	}
	if claims.RoomCode != roomCode {
		return nil, ErrWrongRoom
	}

	return claims, nil
}
