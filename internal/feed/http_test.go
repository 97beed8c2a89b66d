package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cardroom/internal/feed"
)

func TestClientPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/destinations/casino/items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %s", got)
		}
		if got := r.URL.Query().Get("kinds"); got != "post,reply" {
			t.Errorf("kinds = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"t3_000001","author":"alice","body":"banker 10","created_at":1717243200,"destination":"casino","kind":"post"}]}`))
	}))
	defer srv.Close()

	c := feed.NewClient(srv.URL, "bankerbot", "pw")
	items, err := c.Poll(context.Background(), "casino", []feed.Kind{feed.KindPost, feed.KindReply}, 10)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(items) != 1 || items[0].Author != "alice" || items[0].Kind != feed.KindPost {
		t.Fatalf("items = %+v", items)
	}
	if !items[0].CreatedAt.Equal(time.Unix(1717243200, 0)) {
		t.Fatalf("created at = %v", items[0].CreatedAt)
	}
}

func TestClientTypedErrors(t *testing.T) {
	var status int
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()
	c := feed.NewClient(srv.URL, "bankerbot", "pw")
	ctx := context.Background()

	status = http.StatusTooManyRequests
	header = http.Header{"Retry-After": []string{"90"}}
	_, err := c.Reply(ctx, "t3_1", "hello")
	var rl *feed.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 90*time.Second {
		t.Fatalf("rate limit error = %v", err)
	}

	status = http.StatusForbidden
	header = nil
	_, err = c.Poll(ctx, "casino", nil, 5)
	var rej *feed.RejectedError
	if !errors.As(err, &rej) || rej.Destination != "casino" {
		t.Fatalf("rejected error = %v", err)
	}

	status = http.StatusNotFound
	_, err = c.Item(ctx, "t3_gone")
	if !errors.Is(err, feed.ErrDeleted) {
		t.Fatalf("deleted error = %v", err)
	}

	status = http.StatusInternalServerError
	if _, err = c.Unread(ctx); err == nil {
		t.Fatal("expected error on 500")
	}
}

// A crawl loop and an inbox loop share one client, so concurrent
// Connect and Poll must not trip the race detector.
func TestClientConcurrentUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"token":"tok"}`))
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := feed.NewClient(srv.URL, "bankerbot", "pw")
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := c.Connect(ctx); err != nil {
					t.Errorf("connect: %v", err)
					return
				}
				if _, err := c.Poll(ctx, "casino", nil, 5); err != nil {
					t.Errorf("poll: %v", err)
					return
				}
				if _, err := c.Unread(ctx); err != nil {
					t.Errorf("unread: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
