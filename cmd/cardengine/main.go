/*
main.go - Application entry point

PURPOSE:
  Starts the card engine server and bundles the offline tooling into one
  binary. Handles configuration, dependency injection, and graceful
  shutdown.

COMMANDS:
  serve                      Run the HTTP server
  simulate --scenario <id>   Run a demo scenario in memory and print the
                             resulting balances and statements

STARTUP SEQUENCE (serve):
  1. Load TOML configuration (flags override the file)
  2. Initialize SQLite store
  3. Create API handler and router
  4. Start the background lifecycle scheduler
  5. Serve with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  cardengine serve --db ./data/cardengine.db

  # Run with in-memory database on another port
  cardengine serve --db :memory: --addr :3000

  # Inspect a scenario without a server
  cardengine simulate --scenario revolver

SEE ALSO:
  - api/server.go: Router configuration
  - config: TOML configuration surface
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corebank/card-engine/api"
	"github.com/corebank/card-engine/config"
	"github.com/corebank/card-engine/store/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:   "cardengine",
		Short: "Credit card balance lifecycle and statement engine",
	}
	root.AddCommand(serveCmd(), simulateCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath, addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "cardengine.toml", "TOML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path, :memory: for in-memory (overrides config)")
	return cmd
}

func serve(cfg config.Config) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store)
	api.AllowedOrigins = cfg.Server.AllowedOrigins
	router := api.NewRouter(handler)

	scheduler := api.NewLifecycleScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	if cfg.Scheduler.CheckIntervalMinutes > 0 {
		scheduler.CheckInterval = time.Duration(cfg.Scheduler.CheckIntervalMinutes) * time.Minute
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func simulateCmd() *cobra.Command {
	var scenarioID string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a demo scenario in memory and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(":memory:")
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(store)
			if err := handler.LoadScenarioByID(scenarioID); err != nil {
				return err
			}
			return printOutcome(cmd, store)
		},
	}
	cmd.Flags().StringVar(&scenarioID, "scenario", "transactor", "Scenario id (see /api/scenarios)")
	return cmd
}

func printOutcome(cmd *cobra.Command, store *sqlite.Store) error {
	ids, err := store.ListAccounts()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	for _, id := range ids {
		journal, err := store.Journal(id)
		if err != nil {
			return err
		}
		notifications, err := store.Notifications(id, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "account %s: %d postings, %d notifications\n", id, len(journal), len(notifications))
		for _, n := range notifications {
			if err := enc.Encode(map[string]any{"type": n.Type, "payload": n.Payload}); err != nil {
				return err
			}
		}
	}
	return nil
}
