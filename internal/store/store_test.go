package store_test

import (
	"context"
	"errors"
	"testing"

	"cardroom/internal/db"
	"cardroom/internal/migrate"
	"cardroom/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(conn)
}

func TestBalanceAbsentPlayer(t *testing.T) {
	s := newTestStore(t)
	if got := s.Balance(context.Background(), "nobody"); got != store.NoBalance {
		t.Fatalf("absent balance = %d, want %d", got, store.NoBalance)
	}
}

func TestSetBalanceUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SetBalance(ctx, "alice", 100); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.Balance(ctx, "alice"); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	if err := s.SetBalance(ctx, "alice", 80); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := s.Balance(ctx, "alice"); got != 80 {
		t.Fatalf("balance after update = %d, want 80", got)
	}
}

func TestBalanceZeroIsNotAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SetBalance(ctx, "broke", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.Balance(ctx, "broke"); got != 0 {
		t.Fatalf("zero balance read back as %d", got)
	}
}

func TestLeadersOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for player, balance := range map[string]int{
		"alice": 300, "bob": 100, "carol": 300, "dave": 50,
	} {
		if err := s.SetBalance(ctx, player, balance); err != nil {
			t.Fatalf("seed %s: %v", player, err)
		}
	}
	leaders, err := s.Leaders(ctx, 3)
	if err != nil {
		t.Fatalf("leaders: %v", err)
	}
	want := []store.Account{
		{Player: "alice", Balance: 300},
		{Player: "carol", Balance: 300},
		{Player: "bob", Balance: 100},
	}
	if len(leaders) != len(want) {
		t.Fatalf("got %d leaders, want %d", len(leaders), len(want))
	}
	for i := range want {
		if leaders[i] != want[i] {
			t.Fatalf("leaders[%d] = %+v, want %+v", i, leaders[i], want[i])
		}
	}
}

func TestRepliedMarkAndFailClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if s.Replied(ctx, "dealer", "t3_1") {
		t.Fatal("fresh item reads as replied")
	}
	if err := s.MarkReplied(ctx, "dealer", "t3_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !s.Replied(ctx, "dealer", "t3_1") {
		t.Fatal("marked item reads as unreplied")
	}
	// Same item, different agent: independent records.
	if s.Replied(ctx, "banker", "t3_1") {
		t.Fatal("other agent's record leaked")
	}
	// Double-mark is not an error.
	if err := s.MarkReplied(ctx, "dealer", "t3_1"); err != nil {
		t.Fatalf("re-mark: %v", err)
	}

	// A broken connection must read as "already replied".
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.Close()
	broken := store.New(conn)
	if !broken.Replied(ctx, "dealer", "t3_1") {
		t.Fatal("unreadable idempotency record must fail closed")
	}
	if got := broken.Balance(ctx, "alice"); got != store.NoBalance {
		t.Fatalf("unreadable balance = %d, want %d", got, store.NoBalance)
	}
}

func TestExclusiveSequencesBetAndSettle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SetBalance(ctx, "alice", 100); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := s.Exclusive(func(ops store.Ops) error {
		bal := ops.Balance(ctx, "alice")
		if bal < 20 {
			return errors.New("insufficient credits")
		}
		if err := ops.SetBalance(ctx, "alice", bal-20); err != nil {
			return err
		}
		return ops.MarkReplied(ctx, "dealer", "t3_9")
	})
	if err != nil {
		t.Fatalf("exclusive: %v", err)
	}
	if got := s.Balance(ctx, "alice"); got != 80 {
		t.Fatalf("balance after debit = %d, want 80", got)
	}
	if !s.Replied(ctx, "dealer", "t3_9") {
		t.Fatal("reply record missing")
	}
}

func TestAPIKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	hash := store.HashAPIKey("secret-key\n")
	if hash != store.HashAPIKey("secret-key") {
		t.Fatal("hash must trim surrounding whitespace")
	}
	if err := s.InsertAPIKey(ctx, store.APIKey{ID: "k1", Name: "ops", KeyHash: hash}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	key, err := s.GetAPIKeyByHash(ctx, hash)
	if err != nil || key.ID != "k1" {
		t.Fatalf("get by hash: %v %+v", err, key)
	}
	keys, err := s.ListAPIKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("list: %v %d", err, len(keys))
	}
	if err := s.RevokeAPIKey(ctx, "k1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := s.GetAPIKeyByHash(ctx, hash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("revoked key lookup = %v, want ErrNotFound", err)
	}
	if err := s.RevokeAPIKey(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("revoke missing = %v, want ErrNotFound", err)
	}
}
