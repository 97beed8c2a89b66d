package poller_test

import (
	"context"
	"testing"
	"time"

	"cardroom/internal/banlist"
	"cardroom/internal/db"
	"cardroom/internal/feed"
	"cardroom/internal/feed/feedtest"
	"cardroom/internal/filter"
	"cardroom/internal/migrate"
	"cardroom/internal/poller"
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

func newBans(t *testing.T) *banlist.List {
	t.Helper()
	l, err := banlist.Load(t.TempDir() + "/bans.txt")
	if err != nil {
		t.Fatalf("load bans: %v", err)
	}
	return l
}

func TestLadderTiers(t *testing.T) {
	l := poller.Ladder{Micro: 10 * time.Second, Short: 30 * time.Second, Long: 180 * time.Second, Threshold: 3}
	if got := l.Next(true); got != 10*time.Second {
		t.Fatalf("active sleep = %v", got)
	}
	// Idle cycles climb to short, then long at the threshold.
	for i := 0; i < 2; i++ {
		if got := l.Next(false); got != 30*time.Second {
			t.Fatalf("idle cycle %d sleep = %v, want short", i+1, got)
		}
	}
	if got := l.Next(false); got != 180*time.Second {
		t.Fatalf("threshold sleep = %v, want long", got)
	}
	if got := l.Next(false); got != 180*time.Second {
		t.Fatalf("past threshold sleep = %v, want long", got)
	}
	// Activity resets the counter.
	if got := l.Next(true); got != 10*time.Second {
		t.Fatalf("reset sleep = %v, want micro", got)
	}
	if got := l.Next(false); got != 30*time.Second {
		t.Fatalf("sleep after reset = %v, want short", got)
	}
}

func TestCycleDispatchesOncePerItem(t *testing.T) {
	svc := feedtest.NewService()
	svc.Post("casino", "alice", "deal me in")
	st := newTestStore(t)
	ctx := context.Background()

	var handled []string
	p := &poller.Poller{
		Source:       svc.Account("dealer"),
		Destinations: []string{"casino"},
		Store:        st,
		Bans:         newBans(t),
		Bindings: []poller.Binding{{
			Agent: "dealer",
			Match: filter.NotAuthor("dealer"),
			Handle: func(ctx context.Context, item feed.Item) error {
				handled = append(handled, item.ID)
				return st.MarkReplied(ctx, "dealer", item.ID)
			},
		}},
	}

	active, _ := p.Cycle(ctx)
	if !active {
		t.Fatal("first cycle reported idle")
	}
	// The same item shows up again in the next poll; the reply
	// record must keep it from being dispatched twice.
	active, _ = p.Cycle(ctx)
	if active {
		t.Fatal("second cycle reported active")
	}
	if len(handled) != 1 {
		t.Fatalf("handled %d times, want 1", len(handled))
	}
}

func TestCycleRestrictsListingKinds(t *testing.T) {
	svc := feedtest.NewService()
	post := svc.Post("casino", "alice", "deal me in")
	svc.ReplyTo(post.ID, "bob", "me too")
	st := newTestStore(t)

	var handled []feed.Kind
	p := &poller.Poller{
		Source:       svc.Account("dealer"),
		Destinations: []string{"casino"},
		Kinds:        []feed.Kind{feed.KindPost},
		Store:        st,
		Bans:         newBans(t),
		Bindings: []poller.Binding{{
			Agent: "dealer",
			Match: filter.NotAuthor("dealer"),
			Handle: func(ctx context.Context, item feed.Item) error {
				handled = append(handled, item.Kind)
				return st.MarkReplied(ctx, "dealer", item.ID)
			},
		}},
	}
	if active, _ := p.Cycle(context.Background()); !active {
		t.Fatal("cycle reported idle")
	}
	if len(handled) != 1 || handled[0] != feed.KindPost {
		t.Fatalf("handled kinds = %v, want only posts", handled)
	}
}

func TestCycleSkipsBannedDestination(t *testing.T) {
	svc := feedtest.NewService()
	svc.Post("casino", "alice", "deal me in")
	bans := newBans(t)
	if err := bans.Add("casino"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	handled := 0
	p := &poller.Poller{
		Source:       svc.Account("dealer"),
		Destinations: []string{"casino"},
		Store:        newTestStore(t),
		Bans:         bans,
		Bindings: []poller.Binding{{
			Agent:  "dealer",
			Handle: func(context.Context, feed.Item) error { handled++; return nil },
		}},
	}
	if active, _ := p.Cycle(context.Background()); active || handled != 0 {
		t.Fatalf("banned destination dispatched: active=%v handled=%d", active, handled)
	}
}

func TestCycleSurfacesRateLimitWait(t *testing.T) {
	svc := feedtest.NewService()
	svc.Post("casino", "alice", "deal me in")
	p := &poller.Poller{
		Source:       svc.Account("dealer"),
		Destinations: []string{"casino"},
		Store:        newTestStore(t),
		Bans:         newBans(t),
		Bindings: []poller.Binding{{
			Agent: "dealer",
			Handle: func(context.Context, feed.Item) error {
				return &feed.RateLimitError{RetryAfter: 90 * time.Second}
			},
		}},
	}
	_, wait := p.Cycle(context.Background())
	if wait != 90*time.Second {
		t.Fatalf("wait = %v, want the signalled 90s", wait)
	}
}

func TestRunConnectFailureIsFatal(t *testing.T) {
	svc := feedtest.NewService()
	src := svc.Account("dealer")
	src.ConnectErr = context.DeadlineExceeded
	p := &poller.Poller{Source: src, Store: newTestStore(t)}
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("connect failure did not stop the run")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := feedtest.NewService()
	ctx, cancel := context.WithCancel(context.Background())
	slept := 0
	p := &poller.Poller{
		Source:       svc.Account("dealer"),
		Destinations: []string{"casino"},
		Store:        newTestStore(t),
		Sleep: func(context.Context, time.Duration) error {
			slept++
			if slept >= 3 {
				cancel()
			}
			return nil
		},
	}
	if err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("run = %v, want context.Canceled", err)
	}
}
