// Command postcode-import bulk-loads a postcode CSV export into a store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"go.ngs.io/postcodes-api/internal/adapter/store/backend"
	"go.ngs.io/postcodes-api/internal/adapter/store/csv"
	"go.ngs.io/postcodes-api/internal/config"
	"go.ngs.io/postcodes-api/internal/usecase"
)

func main() {
	// Command line flags; unset flags fall back to CONFIG_FILE and the environment.
	csvPath := flag.String("csv", "./data/ukpostcodes.csv", "Path to CSV file (id,postcode,latitude,longitude)")
	storeName := flag.String("store", "", "Store backend: postgres or sqlite")
	databaseURL := flag.String("database-url", "", "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite-path", "", "SQLite database file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *storeName != "" {
		cfg.Store = *storeName
	}
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	if *sqlitePath != "" {
		cfg.SQLitePath = *sqlitePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	stats, err := importCSV(ctx, cfg, *csvPath, cfg.NewLogger(), os.Stdout)
	stop()
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("✓ Import complete (%d imported, %d skipped)\n", stats.Imported, stats.Skipped)
}

// importCSV loads csvPath into the store selected by cfg.
func importCSV(ctx context.Context, cfg config.Config, csvPath string, logger *slog.Logger, out io.Writer) (stats usecase.ImportStats, err error) {
	if err := cfg.Validate(); err != nil {
		return stats, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store == config.StoreMemory {
		return stats, fmt.Errorf("importing into the memory store has no effect; use -store postgres or -store sqlite")
	}

	postcodeStore, err := backend.Open(ctx, cfg)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := postcodeStore.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
	}()

	loader, closer, err := csv.OpenFile(csvPath)
	if err != nil {
		return stats, err
	}
	defer func() { _ = closer.Close() }()

	_, _ = fmt.Fprintf(out, "Importing %s into %s\n", csvPath, backend.Describe(cfg))

	stats, err = usecase.NewPostcodeUseCase(postcodeStore, logger).Import(ctx, loader)
	_, _ = fmt.Fprintf(out, "Imported: %d\n", stats.Imported)
	_, _ = fmt.Fprintf(out, "Skipped:  %d\n", stats.Skipped)
	if err != nil {
		return stats, fmt.Errorf("import aborted: %w", err)
	}
	return stats, nil
}
