package peer

import (
	"errors"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

var (
	ErrClosed      = errors.New("transport closed")
	ErrUnknownPeer = errors.New("unknown peer")
	ErrSlowPeer    = errors.New("peer send buffer full")
)

// HostID is the peer id clients use for the host end of their channel
const HostID = "host"

// EventKind tells what happened on a transport
type EventKind int

const (
	EventConnect EventKind = iota
	EventMessage
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Event is one transport notification. Packet is set for EventMessage.
type Event struct {
	Kind   EventKind
	PeerID string
	Packet domain.Packet
}

// Transport is a reliable ordered channel per peer. On the host it fans
// out to every client; on a client the only peer is HostID.
type Transport interface {
	Send(peerID string, p domain.Packet) error
	Broadcast(p domain.Packet) error
	// Events is closed once the transport is closed
	Events() <-chan Event
	Close() error
}
