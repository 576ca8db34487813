// Command import-catalog loads the anime CSV catalog into the SQLite
// database the API reads when catalog.source is sqlite.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/adapters/csvcatalog"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/sqlite"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

func main() {
	csvPath := flag.String("csv", csvcatalog.DefaultPath, "path to the anime CSV export")
	dbPath := flag.String("db", "catalog.db", "path to the SQLite catalog database")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *level, Format: "console"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *csvPath, *dbPath); err != nil {
		logging.Fatal().Err(err).Msg("import failed")
	}
}

func run(ctx context.Context, csvPath, dbPath string) error {
	start := time.Now()

	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, skipped, err := csvcatalog.Parse(ctx, f)
	if err != nil {
		return err
	}
	logging.Info().
		Str("csv", csvPath).
		Int("entries", len(entries)).
		Int("skipped", skipped).
		Msg("parsed catalog")

	db, err := sqlite.NewAdapter(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	imported, err := db.Import(ctx, entries)
	if err != nil {
		return err
	}
	total, err := db.Count(ctx)
	if err != nil {
		return err
	}

	logging.Info().
		Str("db", dbPath).
		Int("imported", imported).
		Int("total", total).
		Dur("elapsed", time.Since(start)).
		Msg("import complete")
	return nil
}
