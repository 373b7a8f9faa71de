package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ernie/shoot-or-shield/internal/domain"
)

// HTTPProvider asks a remote decision service for a move. The service
// receives the visible state as JSON and answers with a Decision.
type HTTPProvider struct {
	URL    string
	APIKey string
	client *http.Client
}

// NewHTTPProvider creates a provider posting to url
func NewHTTPProvider(url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		URL:    url,
		APIKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// moveRequest is the body posted to the decision service
type moveRequest struct {
	Self     combatantView       `json:"self"`
	Opponent combatantView       `json:"opponent"`
	History  []domain.TurnResult `json:"history"`
}

// combatantView is the subset of combatant state a provider may see
type combatantView struct {
	Name             string  `json:"name"`
	Health           float64 `json:"health"`
	Armor            float64 `json:"armor"`
	Ammo             int     `json:"ammo"`
	MaxAmmo          int     `json:"max_ammo"`
	ShieldCharges    int     `json:"shield_charges"`
	MaxShieldCharges int     `json:"max_shield_charges"`
	Passive          string  `json:"passive,omitempty"`
	GunValue         float64 `json:"gun_value"`
}

func viewOf(c domain.Combatant) combatantView {
	v := combatantView{
		Name:             c.Name,
		Health:           c.Health,
		Armor:            c.Armor,
		Ammo:             c.Ammo,
		MaxAmmo:          c.MaxAmmo,
		ShieldCharges:    c.ShieldCharges,
		MaxShieldCharges: c.MaxShieldCharges,
	}
	if c.Character != nil {
		v.Passive = c.Character.Passive.Description
	}
	if c.Gun != nil {
		v.GunValue = c.Gun.Value
	}
	return v
}

// historyLimit is how many recent turns are sent to the service
const historyLimit = 3

func (p *HTTPProvider) Move(ctx context.Context, self, opponent domain.Combatant, history []domain.TurnResult) (Decision, error) {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	body, err := json.Marshal(moveRequest{Self: viewOf(self), Opponent: viewOf(opponent), History: history})
	if err != nil {
		return Decision{}, fmt.Errorf("encoding move request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("creating move request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("requesting move: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("decision service returned %s", resp.Status)
	}

	var d Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Decision{}, fmt.Errorf("decoding move: %w", err)
	}
	return d, nil
}
