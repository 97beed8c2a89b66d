package events_test

import (
	"context"
	"testing"
	"time"

	"cardroom/internal/db"
	"cardroom/internal/events"
	"cardroom/internal/migrate"
)

func TestAppendAndList(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	w := events.Writer{DB: conn, Now: func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}}
	ctx := context.Background()

	if err := w.Append(ctx, events.TypeGameStarted, "dealer", "casino", "t3_1",
		events.EventPayload{"player": "alice", "bet": 20}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, events.TypeBankGranted, "banker", "casino", "t3_2", nil); err != nil {
		t.Fatalf("append nil payload: %v", err)
	}

	all, err := w.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d events, want 2", len(all))
	}
	if all[0].Type != events.TypeBankGranted {
		t.Fatalf("newest first violated: %s", all[0].Type)
	}

	games, err := w.List(ctx, events.TypeGameStarted, 10)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(games) != 1 || games[0].Agent != "dealer" || games[0].ItemID != "t3_1" {
		t.Fatalf("filtered = %+v", games)
	}
	if games[0].Payload["player"] != "alice" {
		t.Fatalf("payload = %v", games[0].Payload)
	}
	if games[0].TS != "2024-06-01T12:00:00Z" {
		t.Fatalf("ts = %s", games[0].TS)
	}
}
