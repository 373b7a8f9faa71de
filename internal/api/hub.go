package api

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/peer"
)

// PeerHub is the host side of the websocket transport. Every upgraded
// connection becomes a peer with a fresh id.
type PeerHub struct {
	mu     sync.RWMutex
	conns  map[string]*peerConn
	events chan peer.Event
	done   chan struct{}
	once   sync.Once
	closed bool
}

type peerConn struct {
	conn       *peer.Conn
	remoteAddr string
}

// NewPeerHub creates an empty hub
func NewPeerHub() *PeerHub {
	return &PeerHub{
		conns:  make(map[string]*peerConn),
		events: make(chan peer.Event, 256),
		done:   make(chan struct{}),
	}
}

// Attach registers an upgraded websocket and starts its pumps. It returns
// the peer id the host will know the connection by.
func (h *PeerHub) Attach(ws *websocket.Conn, remoteAddr string) (string, error) {
	id := uuid.NewString()
	c := peer.NewConn(ws)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return "", peer.ErrClosed
	}
	h.conns[id] = &peerConn{conn: c, remoteAddr: remoteAddr}
	n := len(h.conns)
	h.mu.Unlock()
	log.Printf("Peer connected from %s (%d total)", remoteAddr, n)

	h.emit(peer.Event{Kind: peer.EventConnect, PeerID: id})
	c.Start(func(p domain.Packet) {
		p.SenderID = id
		h.emit(peer.Event{Kind: peer.EventMessage, PeerID: id, Packet: p})
	}, func() {
		h.mu.Lock()
		delete(h.conns, id)
		n := len(h.conns)
		h.mu.Unlock()
		log.Printf("Peer disconnected from %s (%d total)", remoteAddr, n)
		h.emit(peer.Event{Kind: peer.EventDisconnect, PeerID: id})
	})
	return id, nil
}

// emit blocks until the host reads the event or the hub closes
func (h *PeerHub) emit(ev peer.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Send writes p to one peer
func (h *PeerHub) Send(peerID string, p domain.Packet) error {
	h.mu.RLock()
	pc, ok := h.conns[peerID]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return peer.ErrClosed
	}
	if !ok {
		return peer.ErrUnknownPeer
	}
	return pc.conn.Write(p)
}

// Broadcast writes p to every peer. Slow peers are dropped by their
// connection, not reported here.
func (h *PeerHub) Broadcast(p domain.Packet) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return peer.ErrClosed
	}
	conns := make([]*peerConn, 0, len(h.conns))
	for _, pc := range h.conns {
		conns = append(conns, pc)
	}
	h.mu.RUnlock()

	for _, pc := range conns {
		if err := pc.conn.Write(p); err != nil {
			log.Printf("Warning: write to %s failed: %v", pc.remoteAddr, err)
		}
	}
	return nil
}

// Events returns connection and packet notifications for the host
func (h *PeerHub) Events() <-chan peer.Event {
	return h.events
}

// ClientCount returns the number of connected peers
func (h *PeerHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close hangs up every peer and closes the event channel
func (h *PeerHub) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		h.closed = true
		conns := h.conns
		h.conns = make(map[string]*peerConn)
		close(h.events)
		h.mu.Unlock()
		for _, pc := range conns {
			pc.conn.Close()
		}
	})
	return nil
}
