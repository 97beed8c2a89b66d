// Package feed defines the forum feed the agents poll: an append-only
// stream of posts, replies and private messages per destination, plus
// an unread inbox. Implementations talk to a real forum service; the
// feedtest package holds an in-memory one for tests.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes the item surfaces an agent can see.
type Kind string

const (
	KindPost    Kind = "post"
	KindReply   Kind = "reply"
	KindMessage Kind = "message"
)

// Item is one feed entry. ParentID is empty for top-level posts and
// private messages that do not reply to anything.
type Item struct {
	ID          string
	Author      string
	Body        string
	CreatedAt   time.Time
	Destination string
	Kind        Kind
	ParentID    string
}

// Source is a connection to the forum service. Connect must be called
// before any other method; every call may fail with the typed errors
// below, which callers inspect with errors.As / errors.Is.
type Source interface {
	// Connect authenticates the agent account.
	Connect(ctx context.Context) error
	// Username returns the authenticated account name.
	Username() string
	// Poll returns up to limit of the newest items in a destination,
	// newest first, restricted to the given kinds. An empty kinds
	// slice means no restriction.
	Poll(ctx context.Context, destination string, kinds []Kind, limit int) ([]Item, error)
	// Unread returns the account's unread inbox items (replies and
	// private messages), oldest first.
	Unread(ctx context.Context) ([]Item, error)
	// Item fetches a single item by id.
	Item(ctx context.Context, id string) (Item, error)
	// Reply posts body under the given parent item and returns the
	// created item.
	Reply(ctx context.Context, parentID, body string) (Item, error)
	// MarkRead removes items from the unread inbox.
	MarkRead(ctx context.Context, ids ...string) error
}

// ErrDeleted reports that the requested item no longer exists.
var ErrDeleted = errors.New("feed: item deleted")

// RateLimitError reports that the service refused a write and
// signalled how long to wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("feed: rate limited, retry after %s", e.RetryAfter)
}

// RejectedError reports that the service refused a write outright,
// typically because the agent is banned from the destination.
// Retrying will not help.
type RejectedError struct {
	Destination string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("feed: rejected in %s", e.Destination)
}
