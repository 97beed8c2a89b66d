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
	"cardroom/internal/games/poker"
	"cardroom/internal/poller"
	"cardroom/internal/store"
)

// VideoPoker deals single-round five-card draw. The opening deal
// comes from a crawled trigger with a mandatory bet; the one draw
// turn comes from the unread inbox as a hold/discard mask.
type VideoPoker struct {
	Shared
	Engine *poker.Engine
}

func (a *VideoPoker) Binding() poller.Binding {
	return poller.Binding{
		Agent:  a.Name,
		Match:  filter.And(a.Eligible(), filter.Matches(PokerTrigger)),
		Handle: a.HandleTrigger,
	}
}

// HandleTrigger opens a round, debiting the bet under the same lock
// acquisition that commits the opening reply.
func (a *VideoPoker) HandleTrigger(ctx context.Context, item feed.Item) error {
	bet := IntArg(PokerTrigger, item.Body, 3, 1, 0)
	if bet <= 0 {
		bet = 1
	}
	return a.Store.Exclusive(func(ops store.Ops) error {
		balance := ops.Balance(ctx, item.Author)
		if balance < bet {
			_, err := a.post(ctx, item, insufficientFunds(item.Author, balance, bet))
			a.markHandled(ctx, ops, item.ID)
			return err
		}
		s := a.Engine.Deal(item.Author, bet)
		body := poker.Encode(s) + a.footer(s)
		posted, err := a.post(ctx, item, body)
		if posted {
			if serr := ops.SetBalance(ctx, item.Author, balance-bet); serr != nil {
				log.Printf("%s: debit %s: %v", a.Name, item.Author, serr)
			}
			if a.Stats != nil {
				a.Stats.RecordStart(time.Now())
			}
			a.event(ctx, events.TypeGameStarted, item.Destination, item.ID, events.EventPayload{
				"game": "poker", "player": item.Author, "bet": bet,
			})
		}
		a.markHandled(ctx, ops, item.ID)
		return err
	})
}

// Run is the inbox loop for draw masks.
func (a *VideoPoker) Run(ctx context.Context, ladder poller.Ladder, sleep func(context.Context, time.Duration) error) error {
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

func (a *VideoPoker) InboxCycle(ctx context.Context) (active bool, wait time.Duration) {
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

func (a *VideoPoker) playTurn(ctx context.Context, item feed.Item) (bool, error) {
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
	state, ok := poker.Decode(parent.Body)
	if !ok || state.Terminal() {
		return false, nil
	}
	if !strings.EqualFold(item.Author, state.PlayerID) {
		return false, nil
	}

	mask := poker.MaskRe.FindString(item.Body)
	if mask == "" {
		body := unknownCommand(item.Body) + poker.Encode(state) + a.footer(state)
		return true, a.reply(ctx, item, state, body)
	}
	next, err := a.Engine.Draw(state, mask)
	if err != nil {
		return false, err
	}
	return true, a.reply(ctx, item, next, poker.Encode(next)+a.footer(next))
}

func (a *VideoPoker) reply(ctx context.Context, item feed.Item, s poker.State, body string) error {
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

func (a *VideoPoker) settle(ctx context.Context, ops store.Ops, item feed.Item, s poker.State) {
	if s.Outcome == poker.OutcomeWin && s.Payout > 0 {
		balance := ops.Balance(ctx, s.PlayerID)
		if balance == store.NoBalance {
			balance = 0
		}
		if err := ops.SetBalance(ctx, s.PlayerID, balance+s.Payout); err != nil {
			log.Printf("%s: payout %s: %v", a.Name, s.PlayerID, err)
		}
	}
	a.event(ctx, events.TypeGameFinished, item.Destination, item.ID, events.EventPayload{
		"game": "poker", "player": s.PlayerID, "bet": s.Bet,
		"outcome": s.Outcome.String(), "payout": s.Payout,
	})
}

func (a *VideoPoker) footer(s poker.State) string {
	if s.Terminal() {
		return "\n----\n\nSay `poker <bet>` for a new round.\n"
	}
	return "\n----\n\nReply with a hold/discard mask, e.g. `xxooo` (x holds, o discards).\n"
}
