// Package app wires the process together: one database, one store,
// one ban list and one feed client per agent account, constructed
// once and passed down explicitly. Nothing here is a singleton; the
// CLI and the tests both build an App and tear it down.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"cardroom/internal/agents"
	"cardroom/internal/banlist"
	"cardroom/internal/config"
	"cardroom/internal/db"
	"cardroom/internal/events"
	"cardroom/internal/feed"
	"cardroom/internal/games/blackjack"
	"cardroom/internal/games/poker"
	"cardroom/internal/migrate"
	"cardroom/internal/poller"
	"cardroom/internal/retry"
	"cardroom/internal/store"
)

// App is the assembled process state.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Store  *store.Store
	Bans   *banlist.List
	Events *events.Writer
	Stats  map[string]*agents.Stats

	// NewSource builds a feed connection for an agent account.
	// Defaults to the HTTP client against config.feed.base_url;
	// tests substitute the in-memory service.
	NewSource func(agent config.Agent) feed.Source
}

// Bootstrap opens the database, applies migrations and loads the ban
// list.
func Bootstrap(workspace string, cfg *config.Config) (*App, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	bans, err := banlist.Load(cfg.Bans(workspace))
	if err != nil {
		conn.Close()
		return nil, err
	}
	a := &App{
		Config: cfg,
		DB:     conn,
		Store:  store.New(conn),
		Bans:   bans,
		Events: &events.Writer{DB: conn},
		Stats:  map[string]*agents.Stats{},
	}
	a.NewSource = func(agent config.Agent) feed.Source {
		return feed.NewClient(cfg.Feed.BaseURL, agent.User, agent.Password)
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Run starts every enabled agent and blocks until the context ends:
// one shared crawl poller for new-game triggers plus an inbox loop
// per game agent.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config
	ladder := poller.Ladder{
		Micro:     cfg.Micro(),
		Short:     cfg.Short(),
		Long:      cfg.Long(),
		Threshold: cfg.Poller.InactivityThreshold,
	}
	retrier := retry.Retrier{Limit: cfg.Retry.Limit}
	now := time.Now()

	var bindings []poller.Binding
	var inboxes []func(context.Context) error
	var crawlSource feed.Source

	for _, name := range config.AgentNames {
		agent, ok := cfg.Agents[name]
		if !ok || !agent.Enabled {
			continue
		}
		src := a.NewSource(agent)
		if crawlSource == nil {
			crawlSource = src
		}
		stats := agents.NewStats(now)
		a.Stats[agent.User] = stats
		shared := agents.Shared{
			Name:        agent.User,
			Source:      src,
			Store:       a.Store,
			Bans:        a.Bans,
			Events:      a.Events,
			Retrier:     retrier,
			IgnoreUsers: cfg.IgnoreUsers,
			Horizon:     agents.ReplyHorizon(ctx, a.Store, agent.User, now),
			Stats:       stats,
		}
		switch name {
		case "blackjack":
			bot := &agents.Blackjack{Shared: shared, Engine: blackjack.NewEngine(nil)}
			bindings = append(bindings, bot.Binding())
			inboxes = append(inboxes, func(ctx context.Context) error {
				return bot.Run(ctx, ladder, nil)
			})
		case "videopoker":
			bot := &agents.VideoPoker{Shared: shared, Engine: poker.NewEngine(nil)}
			bindings = append(bindings, bot.Binding())
			inboxes = append(inboxes, func(ctx context.Context) error {
				return bot.Run(ctx, ladder, nil)
			})
		case "banker":
			bot := &agents.Banker{
				Shared:         shared,
				Grant:          cfg.Bank.Grant,
				LeadersDefault: cfg.Bank.LeadersDefault,
				LeadersMax:     cfg.Bank.LeadersMax,
			}
			bindings = append(bindings, bot.Bindings()...)
		}
	}
	if len(bindings) == 0 {
		return fmt.Errorf("no agents enabled")
	}

	crawler := &poller.Poller{
		Source:       crawlSource,
		Destinations: cfg.Feed.Destinations,
		Bindings:     bindings,
		Store:        a.Store,
		Bans:         a.Bans,
		Limit:        cfg.Poller.Limit,
		Ladder:       ladder,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 1+len(inboxes))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := crawler.Run(ctx); err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("crawler: %w", err)
		}
	}()
	for _, run := range inboxes {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				errc <- err
			}
		}(run)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case err := <-errc:
		log.Printf("app: agent failed: %v", err)
		return err
	case <-done:
		return ctx.Err()
	case <-ctx.Done():
		<-done
		return ctx.Err()
	}
}
