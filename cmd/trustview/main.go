package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/trustview/internal/archive"
	"github.com/mtlprog/trustview/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var accountFlag = &cli.StringFlag{
	Name:     "account",
	Usage:    "ledger address to track",
	EnvVars:  []string{"TRUSTVIEW_ACCOUNT"},
	Required: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	app := &cli.App{
		Name:  "trustview",
		Usage: "live view of a ledger account's balance, trust lines and history",
		Commands: []*cli.Command{
			watchCommand(cfg),
			replayCommand(cfg),
			exportCommand(cfg),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// openArchive connects to the database and applies pending migrations.
func openArchive(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := archive.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := archive.Migrate(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}
