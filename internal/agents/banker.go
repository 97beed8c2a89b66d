package agents

import (
	"context"
	"fmt"
	"time"

	"cardroom/internal/events"
	"cardroom/internal/feed"
	"cardroom/internal/filter"
	"cardroom/internal/poller"
	"cardroom/internal/store"
)

// Leaderboard bounds.
const (
	DefaultLeaders = 10
	MaxLeaders     = 100
)

// Banker answers credit queries and runs the leaderboard. It is the
// only agent that grants: a player asking for credits with nothing
// on record (or broke) receives the grant amount.
type Banker struct {
	Shared

	// Grant is the amount handed to broke players. Zero means
	// DefaultGrant.
	Grant int
	// LeadersDefault and LeadersMax bound the leaderboard size.
	// Zero means DefaultLeaders / MaxLeaders.
	LeadersDefault int
	LeadersMax     int
}

func (a *Banker) grant() int {
	if a.Grant > 0 {
		return a.Grant
	}
	return DefaultGrant
}

func (a *Banker) leadersDefault() int {
	if a.LeadersDefault > 0 {
		return a.LeadersDefault
	}
	return DefaultLeaders
}

func (a *Banker) leadersMax() int {
	if a.LeadersMax > 0 {
		return a.LeadersMax
	}
	return MaxLeaders
}

// Bindings registers both banker commands with the shared poller.
func (a *Banker) Bindings() []poller.Binding {
	return []poller.Binding{
		{
			Agent:  a.Name,
			Match:  filter.And(a.Eligible(), filter.Matches(CreditsTrigger)),
			Handle: a.HandleCredits,
		},
		{
			Agent:  a.Name,
			Match:  filter.And(a.Eligible(), filter.Matches(LeadersTrigger)),
			Handle: a.HandleLeaders,
		},
	}
}

// HandleCredits answers "banker credits" / "banker balance". The
// grant, the reply and the idempotency record share one critical
// section.
func (a *Banker) HandleCredits(ctx context.Context, item feed.Item) error {
	return a.Store.Exclusive(func(ops store.Ops) error {
		balance := ops.Balance(ctx, item.Author)
		granted := false
		if balance <= 0 {
			balance = a.grant()
			granted = true
		}
		var body string
		if granted {
			body = fmt.Sprintf("%s, here are %d credits on the house. Don't spend them all in one thread.\n", item.Author, balance)
		} else {
			body = fmt.Sprintf("%s, you have %d credit(s).\n", item.Author, balance)
		}
		posted, err := a.post(ctx, item, body)
		if posted && granted {
			if serr := ops.SetBalance(ctx, item.Author, balance); serr != nil {
				return serr
			}
			a.event(ctx, events.TypeBankGranted, item.Destination, item.ID, events.EventPayload{
				"player": item.Author, "amount": balance,
			})
		}
		if posted && a.Stats != nil {
			a.Stats.RecordTurn(time.Now())
		}
		a.markHandled(ctx, ops, item.ID)
		return err
	})
}

// HandleLeaders answers "banker leaders [n]", n clamped to the
// leaderboard maximum.
func (a *Banker) HandleLeaders(ctx context.Context, item feed.Item) error {
	n := IntArg(LeadersTrigger, item.Body, 3, a.leadersDefault(), a.leadersMax())
	if n <= 0 {
		n = a.leadersDefault()
	}
	return a.Store.Exclusive(func(ops store.Ops) error {
		accounts, err := ops.Leaders(ctx, n)
		if err != nil {
			return err
		}
		var body string
		if len(accounts) == 0 {
			body = "No credits on record yet. Ask for `banker credits` to get started.\n"
		} else {
			body = "Top players by credits:\n\n" + leadersTable(accounts)
		}
		posted, perr := a.post(ctx, item, body)
		if posted && a.Stats != nil {
			a.Stats.RecordTurn(time.Now())
		}
		a.markHandled(ctx, ops, item.ID)
		return perr
	})
}
