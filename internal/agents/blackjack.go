package agents

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cardroom/internal/events"
	"cardroom/internal/feed"
	"cardroom/internal/filter"
	"cardroom/internal/games/blackjack"
	"cardroom/internal/poller"
	"cardroom/internal/store"
)

// Blackjack is the blackjack dealer. New games open from crawled
// trigger posts; in-progress games continue from the unread inbox,
// where every turn is reconstructed by decoding the agent's previous
// reply.
type Blackjack struct {
	Shared
	Engine *blackjack.Engine
}

// Binding registers the new-game trigger with the shared poller.
func (a *Blackjack) Binding() poller.Binding {
	return poller.Binding{
		Agent:  a.Name,
		Match:  filter.And(a.Eligible(), filter.Matches(BlackjackTrigger)),
		Handle: a.HandleTrigger,
	}
}

// HandleTrigger opens a session from a trigger item. A trigger with
// a bet plays for credits: the debit, the opening reply and the
// idempotency record commit as one critical section. A bare trigger
// plays a no-stakes game.
func (a *Blackjack) HandleTrigger(ctx context.Context, item feed.Item) error {
	bet := IntArg(BlackjackTrigger, item.Body, 3, blackjack.NoBet, 0)
	if bet == blackjack.NoBet || bet <= 0 {
		return a.openFree(ctx, item)
	}
	return a.openStaked(ctx, item, bet)
}

func (a *Blackjack) openFree(ctx context.Context, item feed.Item) error {
	s := a.Engine.Deal("", blackjack.NoBet)
	body := blackjack.Encode(s) + a.footer(s)
	return a.Store.Exclusive(func(ops store.Ops) error {
		posted, err := a.post(ctx, item, body)
		a.markHandled(ctx, ops, item.ID)
		if posted {
			a.recordOpen(ctx, item, "", blackjack.NoBet)
		}
		return err
	})
}

func (a *Blackjack) openStaked(ctx context.Context, item feed.Item, bet int) error {
	return a.Store.Exclusive(func(ops store.Ops) error {
		balance := ops.Balance(ctx, item.Author)
		if balance < bet {
			_, err := a.post(ctx, item, insufficientFunds(item.Author, balance, bet))
			a.markHandled(ctx, ops, item.ID)
			return err
		}
		s := a.Engine.Deal(item.Author, bet)
		body := blackjack.Encode(s) + a.footer(s)
		posted, err := a.post(ctx, item, body)
		if posted {
			if serr := ops.SetBalance(ctx, item.Author, balance-bet); serr != nil {
				log.Printf("%s: debit %s: %v", a.Name, item.Author, serr)
			}
			a.recordOpen(ctx, item, item.Author, bet)
			// A natural settles immediately: the payout rides the
			// same lock acquisition as the debit.
			if s.Terminal() {
				a.settle(ctx, ops, item, s)
			}
		}
		a.markHandled(ctx, ops, item.ID)
		return err
	})
}

// Run is the inbox loop: continue every in-progress session whose
// player replied, on the same adaptive cadence as the crawler.
func (a *Blackjack) Run(ctx context.Context, ladder poller.Ladder, sleep func(context.Context, time.Duration) error) error {
	if err := a.Source.Connect(ctx); err != nil {
		return fmt.Errorf("%s: connect: %w", a.Name, err)
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		active, wait := a.InboxCycle(ctx)
		if wait == 0 {
			wait = ladder.Next(active)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InboxCycle processes one batch of unread replies. It reports
// whether any turn was played and a non-zero wait when a write blew
// through the retry budget.
func (a *Blackjack) InboxCycle(ctx context.Context) (active bool, wait time.Duration) {
	unread, err := a.Source.Unread(ctx)
	if err != nil {
		log.Printf("%s: unread: %v", a.Name, err)
		return false, 0
	}
	for _, item := range unread {
		played, err := a.playTurn(ctx, item)
		if err := a.Source.MarkRead(ctx, item.ID); err != nil {
			log.Printf("%s: mark read %s: %v", a.Name, item.ID, err)
		}
		active = active || played
		if err != nil {
			var rl *feed.RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > wait {
				wait = rl.RetryAfter
			} else if !errors.As(err, &rl) {
				log.Printf("%s: turn on %s: %v", a.Name, item.ID, err)
			}
		}
	}
	return active, wait
}

// playTurn applies one player command to the session found in the
// item's parent reply. Items that are not valid turns are skipped
// without being marked, so a later valid command can still land.
func (a *Blackjack) playTurn(ctx context.Context, item feed.Item) (bool, error) {
	if item.Kind != feed.KindReply || !a.Eligible()(item) {
		return false, nil
	}
	if a.Bans != nil && item.Destination != "" && a.Bans.Contains(item.Destination) {
		return false, nil
	}
	if a.Store.Replied(ctx, a.Name, item.ID) {
		return false, nil
	}
	parent, err := a.Source.Item(ctx, item.ParentID)
	if errors.Is(err, feed.ErrDeleted) {
		return false, a.Store.Exclusive(func(ops store.Ops) error {
			a.markHandled(ctx, ops, item.ID)
			return nil
		})
	}
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(parent.Author, a.Name) {
		return false, nil
	}
	state, ok := blackjack.Decode(parent.Body)
	if !ok || state.Terminal() {
		return false, nil
	}
	if state.Stakes() && !strings.EqualFold(item.Author, state.PlayerID) {
		// Someone else's table.
		return false, nil
	}

	switch {
	case IsHit(item.Body):
		next := a.Engine.Hit(state)
		return true, a.reply(ctx, item, next, blackjack.Encode(next)+a.footer(next))
	case IsStand(item.Body):
		steps := a.Engine.Stand(state)
		final := steps[len(steps)-1]
		var b strings.Builder
		for _, s := range steps {
			b.WriteString(blackjack.Encode(s))
		}
		b.WriteString(a.footer(final))
		return true, a.reply(ctx, item, final, b.String())
	default:
		body := unknownCommand(item.Body) + blackjack.Encode(state) + a.footer(state)
		return true, a.reply(ctx, item, state, body)
	}
}

// reply commits a turn: the reply write, the payout (when the
// session just ended with money on the table) and the idempotency
// record, all under the ledger lock.
func (a *Blackjack) reply(ctx context.Context, item feed.Item, s blackjack.State, body string) error {
	return a.Store.Exclusive(func(ops store.Ops) error {
		posted, err := a.post(ctx, item, body)
		if posted {
			if a.Stats != nil {
				a.Stats.RecordTurn(time.Now())
			}
			if s.Terminal() {
				a.settle(ctx, ops, item, s)
			}
		}
		a.markHandled(ctx, ops, item.ID)
		return err
	})
}

// settle credits the payout and writes the finish event. Must run
// under the store lock.
func (a *Blackjack) settle(ctx context.Context, ops store.Ops, item feed.Item, s blackjack.State) {
	payout := blackjack.Payout(s)
	if s.Stakes() && payout > 0 {
		balance := ops.Balance(ctx, s.PlayerID)
		if balance == store.NoBalance {
			balance = 0
		}
		if err := ops.SetBalance(ctx, s.PlayerID, balance+payout); err != nil {
			log.Printf("%s: payout %s: %v", a.Name, s.PlayerID, err)
		}
	}
	a.event(ctx, events.TypeGameFinished, item.Destination, item.ID, events.EventPayload{
		"game": "blackjack", "player": s.PlayerID, "bet": s.Bet,
		"outcome": s.Outcome.String(), "payout": payout,
	})
}

func (a *Blackjack) recordOpen(ctx context.Context, item feed.Item, player string, bet int) {
	if a.Stats != nil {
		a.Stats.RecordStart(time.Now())
	}
	a.event(ctx, events.TypeGameStarted, item.Destination, item.ID, events.EventPayload{
		"game": "blackjack", "player": player, "bet": bet,
	})
}

func (a *Blackjack) footer(s blackjack.State) string {
	if s.Terminal() {
		return "\n----\n\nSay `blackjack <bet>` for a new game.\n"
	}
	return "\n----\n\nSay `hit me` or `stand`.\n"
}
