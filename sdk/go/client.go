// Package cardroomsdk is a minimal Go client for the Cardroom admin
// API: the bank ledger, the destination ban list, the event trail
// and API key management.
package cardroomsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Cardroom admin API server.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Account is one ledger row.
type Account struct {
	Player  string `json:"player"`
	Balance int    `json:"balance"`
}

// Snapshot holds one agent's counters.
type Snapshot struct {
	RunningSince time.Time `json:"running_since"`
	GamesStarted int       `json:"games_started"`
	GamesPlayed  int       `json:"games_played"`
	LastActivity time.Time `json:"last_activity"`
}

// Event is one audit trail entry.
type Event struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Type        string         `json:"type"`
	Agent       string         `json:"agent"`
	Destination string         `json:"destination,omitempty"`
	ItemID      string         `json:"item_id,omitempty"`
	Payload     map[string]any `json:"payload"`
}

// APIKey is an admin credential; the server only ever returns the
// plaintext key on creation.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	RevokedAt string `json:"revoked_at,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Status returns the per-agent counters.
func (c *Client) Status(ctx context.Context) (map[string]Snapshot, error) {
	var resp struct {
		Agents map[string]Snapshot `json:"agents"`
	}
	err := c.do(ctx, http.MethodGet, "v0/status", nil, &resp)
	return resp.Agents, err
}

// Balance returns a player's credits.
func (c *Client) Balance(ctx context.Context, player string) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, "v0/bank/accounts/"+url.PathEscape(player), nil, &resp)
	return resp, err
}

// SetBalance overwrites a player's credits.
func (c *Client) SetBalance(ctx context.Context, player string, balance int) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodPut, "v0/bank/accounts/"+url.PathEscape(player), map[string]any{"balance": balance}, &resp)
	return resp, err
}

// Leaders returns the richest players, best first.
func (c *Client) Leaders(ctx context.Context, limit int) ([]Account, error) {
	endpoint := "v0/bank/leaders"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Account `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Bans returns the banned destinations.
func (c *Client) Bans(ctx context.Context) ([]string, error) {
	var resp struct {
		Items []string `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/bans", nil, &resp)
	return resp.Items, err
}

// AddBan bans a destination.
func (c *Client) AddBan(ctx context.Context, destination string) error {
	return c.do(ctx, http.MethodPost, "v0/bans", map[string]any{"destination": destination}, nil)
}

// RemoveBan lifts a destination ban so the agents resume writing
// there.
func (c *Client) RemoveBan(ctx context.Context, destination string) error {
	return c.do(ctx, http.MethodDelete, "v0/bans/"+url.PathEscape(destination), nil, nil)
}

// Events returns recent events, newest first, optionally filtered by
// type.
func (c *Client) Events(ctx context.Context, evtType string, limit int) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if evtType != "" {
		params.Set("type", evtType)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CreateAPIKey mints a new admin credential. The returned Key field
// is the only copy of the plaintext.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (APIKey, error) {
	var resp APIKey
	err := c.do(ctx, http.MethodPost, "v0/apikeys", map[string]any{"name": name}, &resp)
	return resp, err
}

// ListAPIKeys returns all keys, hashed, newest first.
func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var resp struct {
		Items []APIKey `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/apikeys", nil, &resp)
	return resp.Items, err
}

// RevokeAPIKey revokes a key by id.
func (c *Client) RevokeAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/apikeys/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
