/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and optional TOML config
  2. Initialize SQLite store (seed settings on first run)
  3. Restore any persisted timer session into the state machine
  4. Wire deriver, orchestrator, and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides config, default 8080)
  -db      SQLite database path (overrides config, default ./shifts.db)
           Use ":memory:" for in-memory database
  -config  Path to a TOML config file (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the display ticker
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/shifts.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with a config file
  ./server -config="./shift-engine.toml"

ENVIRONMENT:
  SHIFT_ENGINE_PORT, SHIFT_ENGINE_DB, SHIFT_ENGINE_SEED override the
  config file.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiftpal/shift-engine/api"
	"github.com/shiftpal/shift-engine/config"
	"github.com/shiftpal/shift-engine/engine"
	"github.com/shiftpal/shift-engine/factory"
	"github.com/shiftpal/shift-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	configPath := flag.String("config", "", "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := seedSettings(ctx, store, cfg.Store.SeedFile); err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}

	// Restore a session that survived a restart
	timer := engine.NewTimerStateMachine(store, nil, nil)
	if err := timer.Load(ctx); err != nil {
		log.Printf("Warning: Failed to restore timer session: %v", err)
	}

	deriver := engine.NewDeriver(store)
	orch := engine.NewOrchestrator(deriver, store, nil, nil)

	// Initialize handler
	handler := api.NewHandler(store, timer, deriver, orch, nil)
	handler.Ticker.Enabled = cfg.Ticker.Enabled
	if cfg.Ticker.IntervalMs > 0 {
		handler.Ticker.Interval = time.Duration(cfg.Ticker.IntervalMs) * time.Millisecond
	}
	handler.Ticker.Start()
	defer handler.Ticker.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedSettings applies a settings JSON document on first run only; an
// existing settings document always wins.
func seedSettings(ctx context.Context, store *sqlite.Store, seedFile string) error {
	if seedFile == "" {
		return nil
	}
	has, err := store.HasSettings(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var sj factory.SettingsJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}
	if err := store.SeedSettings(ctx, sj); err != nil {
		return err
	}
	log.Printf("Seeded settings from %s", seedFile)
	return nil
}
