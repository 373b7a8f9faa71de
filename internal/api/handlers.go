package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/profile"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handlePeerWebSocket upgrades a joining player's connection and hands it
// to the room. Private rooms want a ticket before the upgrade.
func (r *Router) handlePeerWebSocket(w http.ResponseWriter, req *http.Request) {
	if r.host == nil || r.peers == nil {
		writeError(w, http.StatusServiceUnavailable, "not hosting a room")
		return
	}
	room := r.host.Room()
	if r.tickets != nil && room.Settings().Private {
		if _, err := r.tickets.ValidateTicket(req.URL.Query().Get("ticket"), room.Code()); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	if _, err := r.peers.Attach(conn, getClientIP(req)); err != nil {
		log.Printf("Warning: attaching peer: %v", err)
	}
}

// handleGetMatch returns the current match as a spectator sees it
func (r *Router) handleGetMatch(w http.ResponseWriter, req *http.Request) {
	if r.host == nil || r.host.Engine() == nil {
		writeError(w, http.StatusNotFound, "no match")
		return
	}
	writeJSON(w, http.StatusOK, r.host.Engine().SnapshotFor(""))
}

// handleGetLobby returns the room roster and settings
func (r *Router) handleGetLobby(w http.ResponseWriter, req *http.Request) {
	if r.host == nil {
		writeError(w, http.StatusNotFound, "not hosting a room")
		return
	}
	lobby := r.host.Room().Update()
	writeJSON(w, http.StatusOK, lobby)
}

type profileResponse struct {
	domain.Profile
	Rank string `json:"rank"`
}

// handleGetProfile returns ?id= or the most recently played profile
func (r *Router) handleGetProfile(w http.ResponseWriter, req *http.Request) {
	var (
		p   *domain.Profile
		err error
	)
	if id := req.URL.Query().Get("id"); id != "" {
		p, err = r.profiles.Load(req.Context(), id)
	} else {
		p, err = r.profiles.Current(req.Context())
	}
	if errors.Is(err, profile.ErrNoProfile) || (err == nil && p == nil) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: *p, Rank: catalog.RankTitle(p.Elo)})
}

// handleGetLeaderboard returns local profiles ranked by ELO
func (r *Router) handleGetLeaderboard(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 10, 100)
	entries, err := r.profiles.Leaderboard(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetMatches returns recently finished matches
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 20, 100)
	matches, err := r.store.GetRecentMatches(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
