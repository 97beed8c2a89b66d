package server

import (
	"cardroom/internal/agents"
	"cardroom/internal/events"
	"cardroom/internal/store"
)

// Request payloads

type SetBalanceRequest struct {
	Balance int `json:"balance"`
}

type BanRequest struct {
	Destination string `json:"destination"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// Response payloads

type StatusResponse struct {
	Agents map[string]agents.Snapshot `json:"agents"`
}

type AccountResponse struct {
	Player  string `json:"player"`
	Balance int    `json:"balance"`
}

type LeadersResponse struct {
	Items []AccountResponse `json:"items"`
}

type BansResponse struct {
	Items []string `json:"items"`
}

type EventResponse struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Type        string         `json:"type"`
	Agent       string         `json:"agent"`
	Destination string         `json:"destination,omitempty"`
	ItemID      string         `json:"item_id,omitempty"`
	Payload     map[string]any `json:"payload"`
}

type EventsResponse struct {
	Items []EventResponse `json:"items"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	RevokedAt string `json:"revoked_at,omitempty"`
}

// CreatedAPIKeyResponse carries the plaintext key exactly once.
type CreatedAPIKeyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

type APIKeysResponse struct {
	Items []APIKeyResponse `json:"items"`
}

func mapAccounts(accounts []store.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountResponse{Player: a.Player, Balance: a.Balance})
	}
	return out
}

func eventResponse(evt events.Event) EventResponse {
	return EventResponse{
		ID:          evt.ID,
		TS:          evt.TS,
		Type:        evt.Type,
		Agent:       evt.Agent,
		Destination: evt.Destination,
		ItemID:      evt.ItemID,
		Payload:     evt.Payload,
	}
}

func apiKeyResponse(key store.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
		RevokedAt: key.RevokedAt,
	}
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
