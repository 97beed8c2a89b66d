package config_test

import (
	"strings"
	"testing"
	"time"

	"cardroom/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Micro() != 10*time.Second || cfg.Short() != 30*time.Second || cfg.Long() != 180*time.Second {
		t.Fatalf("default tiers = %v/%v/%v", cfg.Micro(), cfg.Short(), cfg.Long())
	}
	if cfg.Poller.InactivityThreshold != 8 {
		t.Fatalf("default threshold = %d", cfg.Poller.InactivityThreshold)
	}
	if cfg.Retry.Limit != 5 || cfg.Bank.Grant != 100 {
		t.Fatalf("defaults: retry=%d grant=%d", cfg.Retry.Limit, cfg.Bank.Grant)
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	if _, err := config.FromYAML([]byte(config.GenerateDefault())); err != nil {
		t.Fatalf("generated template does not parse: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing base url", func(c *config.Config) { c.Feed.BaseURL = "" }, "base_url"},
		{"no destinations", func(c *config.Config) { c.Feed.Destinations = nil }, "destinations"},
		{"tiers out of order", func(c *config.Config) { c.Poller.ShortSeconds = 500 }, "micro < short < long"},
		{"zero threshold", func(c *config.Config) { c.Poller.InactivityThreshold = 0 }, "inactivity_threshold"},
		{"unknown agent", func(c *config.Config) { c.Agents["roulette"] = config.Agent{Enabled: true, User: "x"} }, "unknown agent"},
		{"enabled agent without user", func(c *config.Config) {
			c.Agents["banker"] = config.Agent{Enabled: true}
		}, "user is required"},
		{"all agents disabled", func(c *config.Config) { c.Agents = nil }, "at least one agent"},
		{"leaders bounds", func(c *config.Config) { c.Bank.LeadersMax = 1 }, "leaders bounds"},
	}
	for _, tc := range cases {
		cfg := config.Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want containing %q", tc.name, err, tc.want)
		}
	}
}
