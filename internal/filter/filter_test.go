package filter_test

import (
	"regexp"
	"testing"
	"time"

	"cardroom/internal/feed"
	"cardroom/internal/filter"
)

func TestAndShortCircuits(t *testing.T) {
	calls := 0
	count := func(feed.Item) bool { calls++; return false }
	f := filter.And(count, count)
	if f(feed.Item{}) {
		t.Fatal("And of false predicates passed")
	}
	if calls != 1 {
		t.Fatalf("second predicate evaluated after first rejected: %d calls", calls)
	}
}

func TestNotAuthorIsCaseInsensitive(t *testing.T) {
	f := filter.NotAuthor("BankerBot")
	if f(feed.Item{Author: "bankerbot"}) {
		t.Fatal("own item passed")
	}
	if !f(feed.Item{Author: "alice"}) {
		t.Fatal("other author rejected")
	}
}

func TestNotAuthors(t *testing.T) {
	f := filter.NotAuthors([]string{"spammer", "BankerBot"})
	for _, author := range []string{"spammer", "Spammer", "bankerbot"} {
		if f(feed.Item{Author: author}) {
			t.Errorf("ignored author %q passed", author)
		}
	}
	if !f(feed.Item{Author: "alice"}) {
		t.Fatal("listed-free author rejected")
	}
}

func TestAfterExcludesHorizonItself(t *testing.T) {
	horizon := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := filter.After(horizon)
	if f(feed.Item{CreatedAt: horizon}) {
		t.Fatal("item at horizon passed")
	}
	if f(feed.Item{CreatedAt: horizon.Add(-time.Second)}) {
		t.Fatal("older item passed")
	}
	if !f(feed.Item{CreatedAt: horizon.Add(time.Second)}) {
		t.Fatal("newer item rejected")
	}
}

func TestMatchesTriggerPatterns(t *testing.T) {
	pokerRe := regexp.MustCompile(`(?i)(video)?poker(bot)? (\d+)`)
	leadersRe := regexp.MustCompile(`(?i)banker(bot)? leaders (\d+)`)
	cases := []struct {
		f    filter.Func
		body string
		want bool
	}{
		{filter.Matches(pokerRe), "poker 5", true},
		{filter.Matches(pokerRe), "videopokerbot 3", true},
		{filter.Matches(pokerRe), "poker five", false},
		{filter.Matches(leadersRe), "banker leaders 10", true},
		{filter.Matches(leadersRe), "bankerbot leaders 25", true},
		{filter.Matches(leadersRe), "leaders 10", false},
	}
	for _, tc := range cases {
		if got := tc.f(feed.Item{Body: tc.body}); got != tc.want {
			t.Errorf("match %q = %v, want %v", tc.body, got, tc.want)
		}
	}
}
