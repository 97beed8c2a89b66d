// Package events appends an audit trail of everything the agents do
// with money or moderation: games opened and settled, grants handed
// out, destinations banned. The trail is queryable over the admin
// API.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeGameStarted       = "game.started"
	TypeGameFinished      = "game.finished"
	TypeBankGranted       = "bank.granted"
	TypeDestinationBanned = "destination.banned"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Event is one audit trail row.
type Event struct {
	ID          int64
	TS          string
	Type        string
	Agent       string
	Destination string
	ItemID      string
	Payload     EventPayload
}

func (w Writer) Append(ctx context.Context, evtType, agent, destination, itemID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,agent,destination,item_id,payload) VALUES (?,?,?,?,?,?)`,
		ts, evtType, agent, destination, itemID, string(data))
	return err
}

// List returns the newest events first, optionally filtered by type,
// up to limit rows.
func (w Writer) List(ctx context.Context, evtType string, limit int) ([]Event, error) {
	query := `SELECT id,ts,type,agent,destination,item_id,payload FROM events`
	var args []any
	if evtType != "" {
		query += ` WHERE type=?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var raw string
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Agent, &e.Destination, &e.ItemID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			return nil, fmt.Errorf("event %d payload: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
