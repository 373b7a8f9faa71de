package peer

import (
	"log"
	"sync"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

const memoryBuffer = 256

// MemoryHost is an in-process host transport. Clients attach with Connect.
type MemoryHost struct {
	mu     sync.Mutex
	events chan Event
	peers  map[string]*MemoryPeer
	closed bool
}

// MemoryPeer is the client end of an in-process connection
type MemoryPeer struct {
	id     string
	host   *MemoryHost
	events chan Event
	closed bool
}

// NewMemoryHost creates an empty in-process host transport
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		events: make(chan Event, memoryBuffer),
		peers:  make(map[string]*MemoryPeer),
	}
}

// Connect attaches a new client under peerID
func (h *MemoryHost) Connect(peerID string) (*MemoryPeer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if _, ok := h.peers[peerID]; ok {
		return nil, ErrUnknownPeer
	}
	p := &MemoryPeer{id: peerID, host: h, events: make(chan Event, memoryBuffer)}
	h.peers[peerID] = p
	h.emitLocked(Event{Kind: EventConnect, PeerID: peerID})
	return p, nil
}

// emitLocked queues an event for the host's reader
func (h *MemoryHost) emitLocked(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	default:
		log.Printf("Warning: host event buffer full, dropping %s from %s", ev.Kind, ev.PeerID)
		return false
	}
}

// Send delivers p to one client
func (h *MemoryHost) Send(peerID string, p domain.Packet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	peer, ok := h.peers[peerID]
	if !ok {
		return ErrUnknownPeer
	}
	return h.deliverLocked(peer, p)
}

// Broadcast delivers p to every client
func (h *MemoryHost) Broadcast(p domain.Packet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for _, peer := range h.peers {
		h.deliverLocked(peer, p)
	}
	return nil
}

func (h *MemoryHost) deliverLocked(peer *MemoryPeer, p domain.Packet) error {
	select {
	case peer.events <- Event{Kind: EventMessage, PeerID: HostID, Packet: p}:
		return nil
	default:
		// Client's buffer is full, close connection
		h.dropLocked(peer)
		return ErrSlowPeer
	}
}

// dropLocked disconnects a client and tells both ends
func (h *MemoryHost) dropLocked(peer *MemoryPeer) {
	if peer.closed {
		return
	}
	peer.closed = true
	delete(h.peers, peer.id)
	select {
	case peer.events <- Event{Kind: EventDisconnect, PeerID: HostID}:
	default:
	}
	close(peer.events)
	if !h.closed {
		h.emitLocked(Event{Kind: EventDisconnect, PeerID: peer.id})
	}
}

// Disconnect drops one client as if its connection died
func (h *MemoryHost) Disconnect(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peer, ok := h.peers[peerID]; ok {
		h.dropLocked(peer)
	}
}

// Events returns host-side notifications
func (h *MemoryHost) Events() <-chan Event {
	return h.events
}

// Close disconnects every client and closes the event channel
func (h *MemoryHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, peer := range h.peers {
		h.dropLocked(peer)
	}
	close(h.events)
	return nil
}

// Send delivers p to the host. The peer id argument is ignored.
func (p *MemoryPeer) Send(_ string, pkt domain.Packet) error {
	h := p.host
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.closed || h.closed {
		return ErrClosed
	}
	pkt.SenderID = p.id
	if !h.emitLocked(Event{Kind: EventMessage, PeerID: p.id, Packet: pkt}) {
		return ErrSlowPeer
	}
	return nil
}

// Broadcast is Send; a client only talks to the host
func (p *MemoryPeer) Broadcast(pkt domain.Packet) error {
	return p.Send(HostID, pkt)
}

// Events returns packets from the host
func (p *MemoryPeer) Events() <-chan Event {
	return p.events
}

// Close hangs up
func (p *MemoryPeer) Close() error {
	h := p.host
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(p)
	return nil
}
