// cmd/feedmill/cmd/serve.go
package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/averko/feedmill/internal/core/api"
	"github.com/averko/feedmill/internal/core/auth"
	"github.com/averko/feedmill/internal/core/config"
	"github.com/averko/feedmill/internal/core/db"
	"github.com/averko/feedmill/internal/core/server"
	"github.com/averko/feedmill/internal/core/store"
	"github.com/averko/feedmill/internal/engine"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the feed API service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	// Refuse to serve against an unmigrated database.
	var migrationID string
	checkQuery := `SELECT migration_id FROM schema_migrations WHERE migration_id = '0001_initial_schema.sql'`
	if err := database.Get(&migrationID, database.Rebind(checkQuery)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("initial schema migration not applied - run 'feedmill migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set FM_HMAC_SECRET environment variable)")
	}
	cursorSecret, err := config.CursorSecret()
	if err != nil {
		return fmt.Errorf("failed to load cursor secret: %w", err)
	}

	authenticator := auth.NewAuthenticator(secrets, queries)

	executor := store.NewSQLStore(queries, cfg.RandomScanLimit)
	codec := engine.NewCursorCodec(cursorSecret, cfg.CursorTTL)
	paginator := engine.NewPaginator(executor, codec)
	feeds := store.NewFeedRepo(queries)

	service, err := api.NewService(feeds, paginator, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting feedmill API", "version", Version, "host", cfg.Host, "port", cfg.Port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info("shutting down gracefully")
		return httpServer.Shutdown(ctx)
	}
}
