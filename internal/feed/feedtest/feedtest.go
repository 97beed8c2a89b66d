// Package feedtest provides an in-memory forum service for tests. A
// Service holds the shared item graph; Account returns a feed.Source
// bound to one user, with injectable rate limits, bans and deletions.
package feedtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardroom/internal/feed"
)

// Service is the shared in-memory forum.
type Service struct {
	mu        sync.Mutex
	items     map[string]feed.Item
	order     map[string][]string // per destination, arrival order
	unread    map[string][]string // per user
	deleted   map[string]bool
	banned    map[string]map[string]bool // user -> destination
	rateLimit map[string]time.Duration   // user -> one-shot retry-after
	now       time.Time
	seq       int
}

func NewService() *Service {
	return &Service{
		items:     map[string]feed.Item{},
		order:     map[string][]string{},
		unread:    map[string][]string{},
		deleted:   map[string]bool{},
		banned:    map[string]map[string]bool{},
		rateLimit: map[string]time.Duration{},
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Post appends a top-level post to a destination.
func (s *Service) Post(destination, author, body string) feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(feed.Item{
		Author:      author,
		Body:        body,
		Destination: destination,
		Kind:        feed.KindPost,
	})
}

// ReplyTo appends a reply under parent on behalf of author and
// delivers it to the parent author's unread inbox.
func (s *Service) ReplyTo(parentID, author, body string) feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := s.items[parentID]
	item := s.append(feed.Item{
		Author:      author,
		Body:        body,
		Destination: parent.Destination,
		Kind:        feed.KindReply,
		ParentID:    parentID,
	})
	if parent.Author != "" && parent.Author != author {
		s.unread[parent.Author] = append(s.unread[parent.Author], item.ID)
	}
	return item
}

// Message delivers a private message to a user's unread inbox.
func (s *Service) Message(to, author, body string) feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.append(feed.Item{
		Author: author,
		Body:   body,
		Kind:   feed.KindMessage,
	})
	s.unread[to] = append(s.unread[to], item.ID)
	return item
}

// Redeliver puts an item back on a user's unread inbox, simulating
// duplicate delivery from an eventually consistent feed.
func (s *Service) Redeliver(user, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[user] = append(s.unread[user], id)
}

// Delete removes an item; subsequent fetches return feed.ErrDeleted.
func (s *Service) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
}

// Ban makes every write by user into destination fail with a
// feed.RejectedError.
func (s *Service) Ban(user, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banned[user] == nil {
		s.banned[user] = map[string]bool{}
	}
	s.banned[user][destination] = true
}

// RateLimitNext makes the user's next write fail with a
// feed.RateLimitError carrying the given wait. One-shot.
func (s *Service) RateLimitNext(user string, retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit[user] = retryAfter
}

// Get returns an item regardless of deletion, for assertions.
func (s *Service) Get(id string) (feed.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

// Replies returns the replies authored by user, in arrival order.
func (s *Service) Replies(user string) []feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []feed.Item
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if item := s.items[id]; item.Author == user && item.Kind == feed.KindReply {
			out = append(out, item)
		}
	}
	return out
}

func (s *Service) append(item feed.Item) feed.Item {
	s.seq++
	s.now = s.now.Add(time.Second)
	item.ID = fmt.Sprintf("t3_%06d", s.seq)
	item.CreatedAt = s.now
	s.items[item.ID] = item
	if item.Destination != "" {
		s.order[item.Destination] = append(s.order[item.Destination], item.ID)
	}
	return item
}

// Account returns a Source authenticated as the given user.
func (s *Service) Account(user string) *Source {
	return &Source{service: s, user: user}
}

// Source implements feed.Source against the in-memory service.
type Source struct {
	service *Service
	user    string

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
}

var _ feed.Source = (*Source)(nil)

func (f *Source) Connect(ctx context.Context) error { return f.ConnectErr }

func (f *Source) Username() string { return f.user }

func (f *Source) Poll(ctx context.Context, destination string, kinds []feed.Kind, limit int) ([]feed.Item, error) {
	s := f.service
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.order[destination]
	var out []feed.Item
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if s.deleted[ids[i]] {
			continue
		}
		item := s.items[ids[i]]
		if len(kinds) > 0 && !kindMatches(kinds, item.Kind) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func kindMatches(kinds []feed.Kind, k feed.Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func (f *Source) Unread(ctx context.Context) ([]feed.Item, error) {
	s := f.service
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []feed.Item
	for _, id := range s.unread[f.user] {
		if s.deleted[id] {
			continue
		}
		out = append(out, s.items[id])
	}
	return out, nil
}

func (f *Source) Item(ctx context.Context, id string) (feed.Item, error) {
	s := f.service
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || s.deleted[id] {
		return feed.Item{}, feed.ErrDeleted
	}
	return item, nil
}

func (f *Source) Reply(ctx context.Context, parentID, body string) (feed.Item, error) {
	s := f.service
	s.mu.Lock()
	parent, ok := s.items[parentID]
	if !ok || s.deleted[parentID] {
		s.mu.Unlock()
		return feed.Item{}, feed.ErrDeleted
	}
	if wait, limited := s.rateLimit[f.user]; limited {
		delete(s.rateLimit, f.user)
		s.mu.Unlock()
		return feed.Item{}, &feed.RateLimitError{RetryAfter: wait}
	}
	if s.banned[f.user][parent.Destination] {
		s.mu.Unlock()
		return feed.Item{}, &feed.RejectedError{Destination: parent.Destination}
	}
	s.mu.Unlock()
	return f.service.ReplyTo(parentID, f.user, body), nil
}

func (f *Source) MarkRead(ctx context.Context, ids ...string) error {
	s := f.service
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.unread[f.user][:0]
	for _, id := range s.unread[f.user] {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.unread[f.user] = kept
	return nil
}
