package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

type stubProvider struct {
	d     Decision
	err   error
	block bool
}

func (s stubProvider) Move(ctx context.Context, _, _ domain.Combatant, _ []domain.TurnResult) (Decision, error) {
	if s.block {
		<-ctx.Done()
		return Decision{}, ctx.Err()
	}
	return s.d, s.err
}

func bot(ammo, charges int) domain.Combatant {
	return domain.Combatant{Name: "bot", Health: 100, Ammo: ammo, MaxAmmo: 6, ShieldCharges: charges, MaxShieldCharges: 3}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		in        Decision
		self      domain.Combatant
		action    domain.Action
		intensity int
	}{
		{"burst above ammo", Decision{Action: domain.ActionShoot, Intensity: 9}, bot(2, 1), domain.ActionShoot, 2},
		{"zero intensity", Decision{Action: domain.ActionShoot}, bot(2, 1), domain.ActionShoot, 1},
		{"shoot without ammo", Decision{Action: domain.ActionShoot, Intensity: 1}, bot(0, 1), domain.ActionIdle, 1},
		{"shield without charges", Decision{Action: domain.ActionShield}, bot(3, 0), domain.ActionIdle, 1},
		{"garbage action", Decision{Action: "DANCE", Intensity: 4}, bot(3, 3), domain.ActionIdle, 1},
	}
	for _, tt := range tests {
		got := Clamp(tt.in, tt.self)
		if got.Action != tt.action || got.Intensity != tt.intensity {
			t.Fatalf("%s: got %s x%d, want %s x%d", tt.name, got.Action, got.Intensity, tt.action, tt.intensity)
		}
	}
}

func TestHeuristicRespectsResources(t *testing.T) {
	h := NewHeuristic(rand.New(rand.NewPCG(9, 9)))
	for range 200 {
		d, _ := h.Move(context.Background(), bot(0, 0), domain.Combatant{}, nil)
		if d.Action != domain.ActionIdle {
			t.Fatalf("no resources should force idle, got %s", d.Action)
		}
	}
	bursts := 0
	for range 500 {
		d, _ := h.Move(context.Background(), bot(2, 0), domain.Combatant{}, nil)
		if d.Action == domain.ActionShield {
			t.Fatal("shield picked with no charges")
		}
		if d.Intensity > 2 {
			t.Fatalf("burst %d exceeds ammo", d.Intensity)
		}
		if d.Intensity == 2 {
			bursts++
		}
	}
	if bursts == 0 {
		t.Fatal("expected at least one burst over 500 draws")
	}
}

func TestGuardedFallsBack(t *testing.T) {
	fallback := stubProvider{d: Decision{Action: domain.ActionShield, Intensity: 1}}

	g := &Guarded{Primary: stubProvider{err: errors.New("boom")}, Fallback: fallback, Timeout: time.Second}
	d, err := g.Move(context.Background(), bot(3, 3), domain.Combatant{}, nil)
	if err != nil || d.Action != domain.ActionShield {
		t.Fatalf("error fallback: %v %+v", err, d)
	}

	g.Primary = stubProvider{block: true}
	g.Timeout = 20 * time.Millisecond
	start := time.Now()
	d, err = g.Move(context.Background(), bot(3, 3), domain.Combatant{}, nil)
	if err != nil || d.Action != domain.ActionShield {
		t.Fatalf("timeout fallback: %v %+v", err, d)
	}
	if time.Since(start) > time.Second {
		t.Fatal("guarded provider blocked past its timeout")
	}

	g.Primary = stubProvider{d: Decision{Action: domain.ActionShoot, Intensity: 5}}
	d, _ = g.Move(context.Background(), bot(3, 3), domain.Combatant{}, nil)
	if d.Action != domain.ActionShoot || d.Intensity != 3 {
		t.Fatalf("primary decision not clamped: %+v", d)
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.History) != historyLimit {
			http.Error(w, "history not trimmed", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Decision{Action: domain.ActionShoot, Intensity: req.Self.Ammo, Taunt: "get wrecked"})
	}))
	defer srv.Close()

	history := make([]domain.TurnResult, 5)
	p := NewHTTPProvider(srv.URL, "key")
	d, err := p.Move(context.Background(), bot(4, 1), domain.Combatant{}, history)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if d.Action != domain.ActionShoot || d.Intensity != 4 || d.Taunt != "get wrecked" {
		t.Fatalf("unexpected decision %+v", d)
	}

	p.APIKey = ""
	if _, err := p.Move(context.Background(), bot(4, 1), domain.Combatant{}, history); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
