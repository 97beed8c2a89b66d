package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cardroom/internal/app"
	"cardroom/internal/banlist"
	"cardroom/internal/config"
	"cardroom/internal/db"
	"cardroom/internal/events"
	"cardroom/internal/migrate"
	"cardroom/internal/server"
	"cardroom/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "cardroom",
	Short: "Cardroom agents and admin tooling",
	Long: `Cardroom runs a small stable of card-playing agents against a
message feed: a blackjack dealer, a video poker dealer and a banker,
all settling against one shared credit ledger.

The agents poll configured destinations for game commands, play the
games over threaded replies, and debit or pay out credits atomically.
This CLI also carries the operator surface: inspecting the bank,
managing the destination ban list, minting admin API keys and tailing
the event trail.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CARDROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(bankCmd())
	rootCmd.AddCommand(bansCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(eventsCmd())
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agents until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			a, err := app.Bootstrap(workspace, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			a, err := app.Bootstrap(workspace, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			secret := cfg.Server.JWTSecret
			if env := viper.GetString("jwt-secret"); env != "" {
				secret = env
			}
			handler, err := server.New(server.Config{
				Store:    a.Store,
				Bans:     a.Bans,
				Events:   a.Events,
				Stats:    a.Stats,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Cardroom admin API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default cardroom.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate cardroom.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

func bankCmd() *cobra.Command {
	bank := &cobra.Command{Use: "bank", Short: "Inspect and adjust the ledger"}
	bank.AddCommand(bankBalanceCmd())
	bank.AddCommand(bankSetCmd())
	bank.AddCommand(bankLeadersCmd())
	return bank
}

func bankBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <player>",
		Short: "Show a player's credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				balance := st.Balance(ctx, args[0])
				if balance == store.NoBalance {
					return fmt.Errorf("player %s has no ledger row", args[0])
				}
				return printJSONOrTable(store.Account{Player: args[0], Balance: balance})
			})
		},
	}
}

func bankSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <player> <credits>",
		Short: "Overwrite a player's credits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := strconv.Atoi(args[1])
			if err != nil || balance < 0 {
				return fmt.Errorf("credits must be a non-negative integer")
			}
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.SetBalance(ctx, args[0], balance); err != nil {
					return err
				}
				return printJSONOrTable(store.Account{Player: args[0], Balance: balance})
			})
		},
	}
}

func bankLeadersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaders",
		Short: "Show the richest players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				accounts, err := st.Leaders(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(accounts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Player", "Credits"})
				for i, a := range accounts {
					tw.AppendRow(table.Row{i + 1, a.Player, a.Balance})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of players")
	return cmd
}

func bansCmd() *cobra.Command {
	bans := &cobra.Command{Use: "bans", Short: "Manage the destination ban list"}
	bans.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List banned destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(l *banlist.List) error {
				return printJSONOrTable(l.All())
			})
		},
	})
	bans.AddCommand(&cobra.Command{
		Use:   "add <destination>",
		Short: "Ban a destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(l *banlist.List) error {
				return l.Add(args[0])
			})
		},
	})
	bans.AddCommand(&cobra.Command{
		Use:   "remove <destination>",
		Short: "Lift a destination ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(l *banlist.List) error {
				if !l.Contains(args[0]) {
					return fmt.Errorf("destination %s is not banned", args[0])
				}
				return l.Remove(args[0])
			})
		},
	})
	return bans
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage admin API keys"}
	keys.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Mint a new admin API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				secret := uuid.NewString()
				key := store.APIKey{
					ID:      uuid.NewString(),
					Name:    args[0],
					KeyHash: store.HashAPIKey(secret),
				}
				if err := st.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// Printed once, never stored.
				fmt.Printf("id:  %s\nkey: %s\n", key.ID, secret)
				return nil
			})
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List admin API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				items, err := st.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created", "Revoked"})
				for _, key := range items {
					tw.AppendRow(table.Row{key.ID, key.Name, key.CreatedAt, key.RevokedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an admin API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				return st.RevokeAPIKey(ctx, args[0])
			})
		},
	})
	return keys
}

func eventsCmd() *cobra.Command {
	var evtType string
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the event trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(func(conn *events.Writer) error {
				items, err := conn.List(cmd.Context(), evtType, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Agent", "Destination", "Item"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.TS, evt.Type, evt.Agent, evt.Destination, evt.ItemID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of events")
	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, store.New(conn))
}

func withConn(fn func(*events.Writer) error) error {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(&events.Writer{DB: conn})
}

func withBans(fn func(*banlist.List) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	path := (&config.Config{}).Bans(workspace)
	if cfg != nil {
		path = cfg.Bans(workspace)
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return err
	}
	l, err := banlist.Load(path)
	if err != nil {
		return err
	}
	return fn(l)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
