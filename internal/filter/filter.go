// Package filter builds the predicates agents use to decide which
// feed items to act on. Predicates are composed with And and bound to
// a handler by the poller.
package filter

import (
	"regexp"
	"strings"
	"time"

	"cardroom/internal/feed"
)

// Func reports whether an item is of interest.
type Func func(feed.Item) bool

// And passes only items accepted by every predicate.
func And(fs ...Func) Func {
	return func(item feed.Item) bool {
		for _, f := range fs {
			if !f(item) {
				return false
			}
		}
		return true
	}
}

// NotAuthor rejects items written by the given account, compared
// case-insensitively. Agents use it to skip their own output.
func NotAuthor(name string) Func {
	return func(item feed.Item) bool {
		return !strings.EqualFold(item.Author, name)
	}
}

// NotAuthors rejects items written by any of the given accounts.
func NotAuthors(names []string) Func {
	return func(item feed.Item) bool {
		for _, n := range names {
			if strings.EqualFold(item.Author, n) {
				return false
			}
		}
		return true
	}
}

// After rejects items created at or before the horizon.
func After(horizon time.Time) Func {
	return func(item feed.Item) bool {
		return item.CreatedAt.After(horizon)
	}
}

// Kind passes only items of the given kind.
func Kind(k feed.Kind) Func {
	return func(item feed.Item) bool {
		return item.Kind == k
	}
}

// Matches passes items whose body matches the pattern.
func Matches(re *regexp.Regexp) Func {
	return func(item feed.Item) bool {
		return re.MatchString(item.Body)
	}
}
