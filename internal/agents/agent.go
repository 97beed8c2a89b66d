// Package agents holds the bots: blackjack and video poker dealers
// plus the banker. Each agent is a match filter and a handler bound
// to the shared poller for new games, and an inbox loop of its own
// for game continuations. They share one ledger, one idempotency
// store and one ban list.
package agents

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"cardroom/internal/banlist"
	"cardroom/internal/events"
	"cardroom/internal/feed"
	"cardroom/internal/filter"
	"cardroom/internal/retry"
	"cardroom/internal/store"
)

// DefaultGrant is the balance handed to a player the first time the
// banker sees them, and again whenever they go broke.
const DefaultGrant = 100

// Trigger patterns for opening a game or querying the banker. The
// numeric argument is the bet (games) or the table size (leaders).
var (
	BlackjackTrigger = regexp.MustCompile(`(?i)\bblackjack(bot)?\b( (\d+))?`)
	PokerTrigger     = regexp.MustCompile(`(?i)\b(video)?poker(bot)? (\d+)`)
	CreditsTrigger   = regexp.MustCompile(`(?i)\bbanker(bot)? (credits|balance)\b`)
	LeadersTrigger   = regexp.MustCompile(`(?i)\bbanker(bot)? leaders\b( (\d+))?`)
)

// IsHit reports whether free text is a blackjack hit command.
func IsHit(body string) bool {
	t := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(t, "hit") || strings.Contains(t, "hit me")
}

// IsStand reports whether free text is a blackjack stand command.
func IsStand(body string) bool {
	t := strings.ToLower(strings.TrimSpace(body))
	if strings.HasPrefix(t, "stay") || strings.HasPrefix(t, "stand") {
		return true
	}
	for _, phrase := range []string{
		"thats good", "that's good",
		"thats enough", "that's enough",
		"im good", "i'm good",
	} {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}

// IntArg extracts the numeric argument captured by group from a
// trigger match, clamped to max, falling back to def when absent.
func IntArg(re *regexp.Regexp, body string, group, def, max int) int {
	m := re.FindStringSubmatch(body)
	if m == nil || m[group] == "" {
		return def
	}
	n, err := strconv.Atoi(m[group])
	if err != nil {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Stats tracks an agent's activity for the status endpoint and the
// cycle log line.
type Stats struct {
	mu           sync.Mutex
	started      time.Time
	gamesStarted int
	gamesPlayed  int
	lastActivity time.Time
}

func NewStats(now time.Time) *Stats {
	return &Stats{started: now}
}

func (s *Stats) RecordStart(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gamesStarted++
	s.lastActivity = now
}

func (s *Stats) RecordTurn(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gamesPlayed++
	s.lastActivity = now
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RunningSince time.Time `json:"running_since"`
	GamesStarted int       `json:"games_started"`
	GamesPlayed  int       `json:"games_played"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RunningSince: s.started,
		GamesStarted: s.gamesStarted,
		GamesPlayed:  s.gamesPlayed,
		LastActivity: s.lastActivity,
	}
}

// Shared is the wiring every agent carries: the feed account, the
// common stores and the write-path retrier.
type Shared struct {
	Name        string
	Source      feed.Source
	Store       *store.Store
	Bans        *banlist.List
	Events      *events.Writer
	Retrier     retry.Retrier
	IgnoreUsers []string
	Horizon     time.Time
	Stats       *Stats
}

// ReplyHorizon computes the earliest item timestamp the agent should
// consider: its most recent recorded effect, or now when it has
// none. Keeps a restarted agent from replying to a backlog.
func ReplyHorizon(ctx context.Context, st *store.Store, agent string, now time.Time) time.Time {
	if t, ok := st.LastHandled(ctx, agent); ok {
		return t
	}
	return now
}

// Eligible is the common pre-trigger predicate: not the agent's own
// item, not an ignored author, not older than the horizon.
func (s *Shared) Eligible() filter.Func {
	return filter.And(
		filter.NotAuthor(s.Name),
		filter.NotAuthors(s.IgnoreUsers),
		filter.After(s.Horizon),
	)
}

func (s *Shared) event(ctx context.Context, evtType, destination, itemID string, payload events.EventPayload) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Append(ctx, evtType, s.Name, destination, itemID, payload); err != nil {
		log.Printf("%s: append event %s: %v", s.Name, evtType, err)
	}
}

// post writes a reply through the retrier and translates the write
// result. A posted reply returns (true, nil). Permanent rejection
// trips the circuit breaker; a deleted parent is a silent skip; both
// report (false, nil) and the caller still marks the item handled. A
// retry budget exhausted on rate limits surfaces the error so the
// poll loop can sleep the signalled wait; the item is marked handled
// by the caller regardless, to stop retry storms.
func (s *Shared) post(ctx context.Context, item feed.Item, body string) (bool, error) {
	err := s.Retrier.Do(ctx, func() error {
		_, err := s.Source.Reply(ctx, item.ID, body)
		return err
	})
	if err == nil {
		return true, nil
	}
	var rej *feed.RejectedError
	if errors.As(err, &rej) {
		destination := rej.Destination
		if destination == "" {
			destination = item.Destination
		}
		log.Printf("%s: banned from %s, tripping circuit breaker", s.Name, destination)
		if berr := s.Bans.Add(destination); berr != nil {
			log.Printf("%s: persist ban for %s: %v", s.Name, destination, berr)
		}
		s.event(ctx, events.TypeDestinationBanned, destination, item.ID, nil)
		return false, nil
	}
	if errors.Is(err, feed.ErrDeleted) {
		return false, nil
	}
	return false, err
}

// sleepCtx is the default inbox-loop sleep: context-aware, no busy
// waiting.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// markHandled records the idempotency row, logging rather than
// failing: at this point the externally visible effect already
// happened.
func (s *Shared) markHandled(ctx context.Context, ops store.Ops, itemID string) {
	if err := ops.MarkReplied(ctx, s.Name, itemID); err != nil {
		log.Printf("%s: mark replied %s: %v", s.Name, itemID, err)
	}
}
