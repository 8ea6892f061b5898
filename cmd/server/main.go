// Package main provides the postcodes API HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"go.ngs.io/postcodes-api/internal/adapter/store/backend"
	"go.ngs.io/postcodes-api/internal/adapter/store/csv"
	"go.ngs.io/postcodes-api/internal/config"
	httpHandler "go.ngs.io/postcodes-api/internal/http"
	"go.ngs.io/postcodes-api/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("postcodes-api version %s\n", version)
		return
	}

	if err := run(); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from file and environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting postcodes API server",
		"version", version,
		"port", cfg.Port,
		"store", backend.Describe(cfg),
		"auth", cfg.Auth.Enabled(),
	)

	ctx := context.Background()

	// Initialize store.
	postcodeStore, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := postcodeStore.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	// Initialize use case.
	postcodeUC := usecase.NewPostcodeUseCase(postcodeStore, logger)

	if cfg.SeedCSV != "" {
		if err := seed(ctx, postcodeUC, cfg.SeedCSV, logger); err != nil {
			return err
		}
	}

	var auth *httpHandler.Authenticator
	if cfg.Auth.Enabled() {
		auth, err = httpHandler.NewAuthenticator(cfg.Auth)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("authentication disabled (JWT_SECRET not set)")
	}

	// Setup router.
	router, err := httpHandler.SetupRouter(postcodeUC, httpHandler.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Auth:           auth,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("server listening", "addr", addr, "health", fmt.Sprintf("http://localhost:%s/health", cfg.Port))
	return router.Run(addr)
}

// seed imports a CSV file into the store before the server starts.
func seed(ctx context.Context, uc *usecase.PostcodeUseCase, path string, logger *slog.Logger) error {
	loader, closer, err := csv.OpenFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	stats, err := uc.Import(ctx, loader)
	if err != nil {
		return fmt.Errorf("seeding from %s: %w", path, err)
	}
	logger.Info("seeded postcodes", "path", path, "imported", stats.Imported, "skipped", stats.Skipped)
	return nil
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Postcodes API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  postcodes-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  CONFIG_FILE             Optional YAML config file (environment overrides it)")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  STORE                   memory, postgres or sqlite (default: memory)")
	fmt.Println("  DATABASE_URL            PostgreSQL connection string (STORE=postgres)")
	fmt.Println("  SQLITE_PATH             SQLite database file (default: ./data/postcodes.db)")
	fmt.Println("  SEED_CSV                CSV file imported at startup (optional)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  REQUEST_TIMEOUT         Per-request store timeout (default: 10s)")
	fmt.Println("  JWT_SECRET              Enables bearer-token auth when set")
	fmt.Println("  JWT_TTL                 Token lifetime (default: 1h)")
	fmt.Println("  AUTH_USERNAME           Login username")
	fmt.Println("  AUTH_PASSWORD           Login password")
	fmt.Println("  LOG_LEVEL               debug, info, warn or error (default: info)")
	fmt.Println("  LOG_FORMAT              text or json (default: text)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  postcodes-api")
	fmt.Println()
	fmt.Println("  # Persist to SQLite and seed from a CSV export")
	fmt.Println("  STORE=sqlite SEED_CSV=./data/ukpostcodes.csv postcodes-api")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                         Health check")
	fmt.Println("  POST /api/auth/login                 Issue a bearer token (if auth enabled)")
	fmt.Println("  POST /api/postal-codes/distance      Distance between two postcodes")
	fmt.Println("  POST /api/postal-codes               Create or update a mapping")
	fmt.Println("  GET  /api/postal-codes               List mappings (page, size, sortBy)")
	fmt.Println("  GET  /api/postal-codes/:postcode     Get a mapping")
	fmt.Println("  PUT  /api/postal-codes/:postcode     Update an existing mapping")
	fmt.Println()
}
