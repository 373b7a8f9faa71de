package api

import (
	"context"
	"net/http"

	"github.com/ernie/shoot-or-shield/internal/auth"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/peer"
	"github.com/ernie/shoot-or-shield/internal/profile"
	"github.com/ernie/shoot-or-shield/internal/storage"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux      *http.ServeMux
	store    *storage.Store
	profiles *profile.Service
	host     *peer.HostSession
	peers    *PeerHub
	events   *EventHub
	tickets  *auth.Service
}

// NewRouter creates a new HTTP router. host and peers are nil when this
// process is not hosting a room; the peer endpoint then answers 503.
func NewRouter(store *storage.Store, profiles *profile.Service, host *peer.HostSession, peers *PeerHub, tickets *auth.Service) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		store:    store,
		profiles: profiles,
		host:     host,
		peers:    peers,
		events:   NewEventHub(),
		tickets:  tickets,
	}

	r.mux.HandleFunc("GET /api/match", r.handleGetMatch)
	r.mux.HandleFunc("GET /api/lobby", r.handleGetLobby)
	r.mux.HandleFunc("GET /api/profile", r.handleGetProfile)
	r.mux.HandleFunc("GET /api/leaderboard", r.handleGetLeaderboard)
	r.mux.HandleFunc("GET /api/matches", r.handleGetMatches)

	// WebSocket endpoints
	r.mux.HandleFunc("GET /ws", r.handlePeerWebSocket)
	r.mux.HandleFunc("GET /ws/events", r.handleEventWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartEventHub starts broadcasting match events to spectators until ctx
// ends
func (r *Router) StartEventHub(ctx context.Context, events <-chan domain.Event) {
	go r.events.Run(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				r.events.Broadcast(event)
			}
		}
	}()
}
