package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxPacket  = 64 * 1024
	sendBuffer = 256
)

// Conn pumps packets over one websocket connection
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn wraps an established websocket
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Start runs the read and write pumps. onPacket is called for every
// decoded packet and onClose exactly once when the read side ends, both
// from the read goroutine.
func (c *Conn) Start(onPacket func(domain.Packet), onClose func()) {
	go c.writePump()
	go c.readPump(onPacket, onClose)
}

// Write queues a packet. A peer whose buffer is full is disconnected.
func (c *Conn) Write(p domain.Packet) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding packet: %w", err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.Close()
		return ErrSlowPeer
	}
}

// Close stops both pumps
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump decodes packets from the websocket
func (c *Conn) readPump(onPacket func(domain.Packet), onClose func()) {
	defer func() {
		c.Close()
		c.ws.Close()
		onClose()
	}()

	c.ws.SetReadLimit(maxPacket)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		var p domain.Packet
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("Warning: dropping malformed packet: %v", err)
			continue
		}
		onPacket(p)
	}
}

// writePump sends queued packets, one per message, and keeps the
// connection alive with pings
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever was queued before Close
func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Client is the client end of a websocket connection to a host
type Client struct {
	conn   *Conn
	events chan Event
}

// Dial connects to a host's /ws endpoint. ticket is passed as a query
// parameter for private rooms.
func Dial(ctx context.Context, rawURL, ticket string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing host url: %w", err)
	}
	if ticket != "" {
		q := u.Query()
		q.Set("ticket", ticket)
		u.RawQuery = q.Encode()
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("host refused ticket: %w", err)
		}
		return nil, fmt.Errorf("dialing host: %w", err)
	}

	c := &Client{conn: NewConn(ws), events: make(chan Event, sendBuffer)}
	c.conn.Start(func(p domain.Packet) {
		select {
		case c.events <- Event{Kind: EventMessage, PeerID: HostID, Packet: p}:
		case <-c.conn.done:
		}
	}, func() {
		select {
		case c.events <- Event{Kind: EventDisconnect, PeerID: HostID}:
		default:
		}
		close(c.events)
	})
	return c, nil
}

// Send writes to the host. The peer id argument is ignored.
func (c *Client) Send(_ string, p domain.Packet) error {
	return c.conn.Write(p)
}

// Broadcast is Send
func (c *Client) Broadcast(p domain.Packet) error {
	return c.conn.Write(p)
}

// Events returns packets from the host
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close hangs up
func (c *Client) Close() error {
	c.conn.Close()
	return nil
}
