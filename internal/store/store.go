// Package store persists the shared casino ledger and the reply
// idempotency records. Every agent in the process goes through one
// Store, whose single mutex serializes balance movements; Exclusive
// extends that critical section across a whole bet-settle sequence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// NoBalance is returned when a player has no ledger row, and also
// when the ledger cannot be read: callers treat both as "no credits
// on record" rather than risking a payout on stale data.
const NoBalance = -1

// Account is one ledger row.
type Account struct {
	Player  string
	Balance int
}

// Store wraps the database with process-wide mutual exclusion.
type Store struct {
	mu  sync.Mutex
	ops Ops
}

func New(conn *sql.DB) *Store {
	return &Store{ops: Ops{DB: conn}}
}

// Exclusive runs fn while holding the store lock. No other balance or
// idempotency operation proceeds until fn returns, so a handler can
// debit, act on the outside world and settle as one atomic step.
func (s *Store) Exclusive(fn func(Ops) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ops)
}

func (s *Store) Balance(ctx context.Context, player string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.Balance(ctx, player)
}

func (s *Store) SetBalance(ctx context.Context, player string, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.SetBalance(ctx, player, balance)
}

func (s *Store) Leaders(ctx context.Context, limit int) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.Leaders(ctx, limit)
}

func (s *Store) Replied(ctx context.Context, agent, itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.Replied(ctx, agent, itemID)
}

func (s *Store) LastHandled(ctx context.Context, agent string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.LastHandled(ctx, agent)
}

func (s *Store) MarkReplied(ctx context.Context, agent, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.MarkReplied(ctx, agent, itemID)
}

// Ops are the unlocked database operations. They are only reachable
// through a Store, which owns the lock.
type Ops struct {
	DB *sql.DB
}

// Balance returns the player's credits, or NoBalance when the player
// has no row or the read fails.
func (o Ops) Balance(ctx context.Context, player string) int {
	var balance int
	err := o.DB.QueryRowContext(ctx, `SELECT balance FROM bank WHERE player=?`, player).Scan(&balance)
	if err != nil {
		return NoBalance
	}
	return balance
}

// SetBalance upserts the player's credits.
func (o Ops) SetBalance(ctx context.Context, player string, balance int) error {
	_, err := o.DB.ExecContext(ctx, `
		INSERT INTO bank(player, balance, updated_at) VALUES (?,?,?)
		ON CONFLICT(player) DO UPDATE SET balance=excluded.balance, updated_at=excluded.updated_at`,
		player, balance, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set balance for %s: %w", player, err)
	}
	return nil
}

// Leaders returns the richest players, highest balance first, ties
// broken by name.
func (o Ops) Leaders(ctx context.Context, limit int) ([]Account, error) {
	rows, err := o.DB.QueryContext(ctx, `
		SELECT player, balance FROM bank ORDER BY balance DESC, player ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaders: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Player, &a.Balance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Replied reports whether the agent has already replied to the item.
// It fails closed: an unreadable idempotency record reads as "already
// replied", since a duplicate payout is worse than a missed reply.
func (o Ops) Replied(ctx context.Context, agent, itemID string) bool {
	var n int
	err := o.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM bot_replies WHERE agent=? AND item_id=?`, agent, itemID).Scan(&n)
	if err != nil {
		return true
	}
	return n > 0
}

// LastHandled returns when the agent most recently recorded a reply,
// for computing the reply horizon after a restart. ok is false when
// the agent has no records.
func (o Ops) LastHandled(ctx context.Context, agent string) (time.Time, bool) {
	var ts string
	err := o.DB.QueryRowContext(ctx, `SELECT MAX(created_at) FROM bot_replies WHERE agent=?`, agent).Scan(&ts)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarkReplied records that the agent handled the item. Recording the
// same pair twice is not an error.
func (o Ops) MarkReplied(ctx context.Context, agent, itemID string) error {
	_, err := o.DB.ExecContext(ctx, `
		INSERT INTO bot_replies(agent, item_id, created_at) VALUES (?,?,?)
		ON CONFLICT(agent, item_id) DO NOTHING`,
		agent, itemID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark replied %s/%s: %w", agent, itemID, err)
	}
	return nil
}
