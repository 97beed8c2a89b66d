// Package poller drives the shared crawl loop: fetch a batch per
// destination, filter it through each agent's match predicate, and
// dispatch unhandled items to the bound handler. Dispatch is
// idempotent: the ban list and the reply record are consulted before
// any handler runs.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cardroom/internal/banlist"
	"cardroom/internal/feed"
	"cardroom/internal/filter"
	"cardroom/internal/store"
)

// Default cadence tiers.
const (
	DefaultMicro     = 10 * time.Second
	DefaultShort     = 30 * time.Second
	DefaultLong      = 180 * time.Second
	DefaultThreshold = 8
	DefaultLimit     = 10
)

// Ladder is the three-tier adaptive sleep policy. An active cycle
// resets to the micro interval; idle cycles sleep short until the
// threshold is reached, then long.
type Ladder struct {
	Micro     time.Duration
	Short     time.Duration
	Long      time.Duration
	Threshold int

	idle int
}

func DefaultLadder() Ladder {
	return Ladder{Micro: DefaultMicro, Short: DefaultShort, Long: DefaultLong, Threshold: DefaultThreshold}
}

// Next returns the sleep for the cycle that just finished.
func (l *Ladder) Next(active bool) time.Duration {
	if active {
		l.idle = 0
		return l.Micro
	}
	l.idle++
	if l.idle < l.Threshold {
		return l.Short
	}
	return l.Long
}

// Binding ties an agent's match predicate to its handler.
type Binding struct {
	Agent  string
	Match  filter.Func
	Handle func(ctx context.Context, item feed.Item) error
}

// Poller owns one crawl loop over a set of destinations, shared by
// every registered binding.
type Poller struct {
	Source       feed.Source
	Destinations []string
	Bindings     []Binding
	Store        *store.Store
	Bans         *banlist.List

	// Kinds restricts which listing kinds are crawled. Nil means
	// posts and replies.
	Kinds []feed.Kind

	// Limit caps the batch size per destination. Zero means
	// DefaultLimit.
	Limit  int
	Ladder Ladder
	// Sleep is replaceable in tests. Nil means a context-aware
	// real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run crawls until the context is cancelled. The initial connect is
// the only fatal failure; once connected, poll errors are logged and
// the loop keeps going.
func (p *Poller) Run(ctx context.Context) error {
	if p.Ladder == (Ladder{}) {
		p.Ladder = DefaultLadder()
	}
	if err := p.Source.Connect(ctx); err != nil {
		return fmt.Errorf("poller: connect: %w", err)
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		active, wait := p.Cycle(ctx)
		if wait == 0 {
			wait = p.Ladder.Next(active)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Cycle runs one crawl over every destination. It reports whether
// any item was dispatched, and a non-zero wait when a write was rate
// limited past its retry budget, in which case the caller sleeps
// exactly that long instead of consulting the ladder.
func (p *Poller) Cycle(ctx context.Context) (active bool, wait time.Duration) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	kinds := p.Kinds
	if kinds == nil {
		kinds = []feed.Kind{feed.KindPost, feed.KindReply}
	}
	for _, destination := range p.Destinations {
		if ctx.Err() != nil {
			return active, 0
		}
		if p.Bans != nil && p.Bans.Contains(destination) {
			continue
		}
		items, err := p.Source.Poll(ctx, destination, kinds, limit)
		if err != nil {
			log.Printf("poller: poll %s: %v", destination, err)
			continue
		}
		for _, item := range items {
			dispatched, w := p.dispatch(ctx, item)
			active = active || dispatched
			if w > wait {
				wait = w
			}
		}
	}
	return active, wait
}

func (p *Poller) dispatch(ctx context.Context, item feed.Item) (bool, time.Duration) {
	for i := range p.Bindings {
		b := &p.Bindings[i]
		if b.Match != nil && !b.Match(item) {
			continue
		}
		if p.Bans != nil && p.Bans.Contains(item.Destination) {
			return false, 0
		}
		if p.Store.Replied(ctx, b.Agent, item.ID) {
			continue
		}
		err := b.Handle(ctx, item)
		if err == nil {
			return true, 0
		}
		var rl *feed.RateLimitError
		if errors.As(err, &rl) {
			log.Printf("poller: %s on %s: rate limited, waiting %s", b.Agent, item.ID, rl.RetryAfter)
			return true, rl.RetryAfter
		}
		log.Printf("poller: %s on %s: %v", b.Agent, item.ID, err)
		return true, 0
	}
	return false, 0
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
