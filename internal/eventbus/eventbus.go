package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Publisher sends match events to NATS under
// <prefix>.match.<matchID>.<eventType>
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials the NATS server at url
func Connect(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("shoot-or-shield"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("Warning: NATS disconnected: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return NewPublisher(nc, prefix), nil
}

// NewPublisher wraps an existing connection
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "sos"
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event is published on
func (p *Publisher) Subject(matchID, eventType string) string {
	return strings.Join([]string{p.prefix, "match", token(matchID), token(eventType)}, ".")
}

// token keeps ids from splitting or wildcarding a subject
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}

// Publish sends one event
func (p *Publisher) Publish(event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return p.nc.Publish(p.Subject(event.MatchID, event.Type), data)
}

// Flush waits for published events to reach the server
func (p *Publisher) Flush() error {
	return p.nc.Flush()
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Received is an event read back off the bus with its payload left raw
type Received struct {
	Type      string          `json:"event"`
	MatchID   string          `json:"match_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Subscribe calls fn for every event of one match. An empty matchID
// subscribes to all matches.
func Subscribe(nc *nats.Conn, prefix, matchID string, fn func(Received)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = "sos"
	}
	m := "*"
	if matchID != "" {
		m = token(matchID)
	}
	return nc.Subscribe(prefix+".match."+m+".*", func(msg *nats.Msg) {
		var r Received
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			log.Printf("Warning: dropping malformed event on %s: %v", msg.Subject, err)
			return
		}
		fn(r)
	})
}

// Forwarder drains an engine's event channel onto the bus
type Forwarder struct {
	pub  *Publisher
	done chan struct{}
	wg   sync.WaitGroup
}

// NewForwarder creates a forwarder for pub
func NewForwarder(pub *Publisher) *Forwarder {
	return &Forwarder{pub: pub, done: make(chan struct{})}
}

// Forward publishes everything from events until the channel is closed,
// ctx is cancelled or Stop is called
func (f *Forwarder) Forward(ctx context.Context, events <-chan domain.Event) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-f.done:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := f.pub.Publish(ev); err != nil {
					log.Printf("Warning: failed to publish %s event: %v", ev.Type, err)
				}
			}
		}
	}()
}

// Stop ends every forwarding goroutine
func (f *Forwarder) Stop() {
	log.Println("Forwarder: stopping...")
	close(f.done)
	f.wg.Wait()
}
