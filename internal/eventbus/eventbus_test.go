package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	s := natstest.RunRandClientPortServer()
	t.Cleanup(s.Shutdown)
	return s
}

func subscriber(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestSubjectSanitizesTokens(t *testing.T) {
	p := NewPublisher(nil, "")
	if got := p.Subject("a.b*c", domain.EventRoundEnd); got != "sos.match.a_b_c.round_end" {
		t.Fatalf("subject %q", got)
	}
	if got := p.Subject("", "x"); got != "sos.match._.x" {
		t.Fatalf("subject %q", got)
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	s := runServer(t)
	pub, err := Connect(s.ClientURL(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	got := make(chan Received, 4)
	nc := subscriber(t, s.ClientURL())
	if _, err := Subscribe(nc, "test", "m1", func(r Received) { got <- r }); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	pub.Publish(domain.Event{Type: domain.EventMatchStart, MatchID: "other"})
	pub.Publish(domain.Event{Type: domain.EventRoundEnd, MatchID: "m1",
		Data: domain.RoundEndEvent{Round: 2, WinnerTeam: 1}})
	if err := pub.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-got:
		if r.Type != domain.EventRoundEnd || r.MatchID != "m1" {
			t.Fatalf("received %+v", r)
		}
		var re domain.RoundEndEvent
		if err := json.Unmarshal(r.Data, &re); err != nil || re.Round != 2 || re.WinnerTeam != 1 {
			t.Fatalf("payload %s", r.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	select {
	case r := <-got:
		t.Fatalf("event for another match delivered: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwarder(t *testing.T) {
	s := runServer(t)
	pub, err := Connect(s.ClientURL(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	got := make(chan Received, 8)
	nc := subscriber(t, s.ClientURL())
	if _, err := Subscribe(nc, "", "", func(r Received) { got <- r }); err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	events := make(chan domain.Event, 8)
	f := NewForwarder(pub)
	f.Forward(context.Background(), events)
	events <- domain.Event{Type: domain.EventMatchStart, MatchID: "a"}
	events <- domain.Event{Type: domain.EventMatchEnd, MatchID: "b"}

	seen := map[string]string{}
	for len(seen) < 2 {
		select {
		case r := <-got:
			seen[r.MatchID] = r.Type
		case <-time.After(2 * time.Second):
			t.Fatalf("only received %v", seen)
		}
	}
	if seen["a"] != domain.EventMatchStart || seen["b"] != domain.EventMatchEnd {
		t.Fatalf("seen %v", seen)
	}
	f.Stop()
}
