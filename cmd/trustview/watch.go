package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/trustview/internal/api"
	"github.com/mtlprog/trustview/internal/archive"
	"github.com/mtlprog/trustview/internal/broadcast"
	"github.com/mtlprog/trustview/internal/config"
	"github.com/mtlprog/trustview/internal/export"
	"github.com/mtlprog/trustview/internal/journal"
	"github.com/mtlprog/trustview/internal/projection"
	"github.com/mtlprog/trustview/internal/rippled"
)

func watchCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "track an account live and serve its projection over HTTP",
		Flags: []cli.Flag{
			accountFlag,
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "wallet seed used for the wallet_accounts query",
				EnvVars: []string{"TRUSTVIEW_SECRET"},
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "HTTP port",
				Value: cfg.HTTPPort,
			},
		},
		Action: func(c *cli.Context) error {
			return runWatch(c.Context, cfg, c.String("account"), c.String("secret"), c.String("port"))
		},
	}
}

func runWatch(ctx context.Context, cfg config.Config, account, secret, port string) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if secret == "" {
		slog.Warn("no wallet secret, balance and history backfill will stay empty", "account", account)
	}

	remote := rippled.NewRemote(
		rippled.NewClient(cfg.RippledRPCURL, cfg.RPCRetryMax, cfg.RPCRetryBaseDelay),
		rippled.NewStream(cfg.RippledWSURL, cfg.WSOrigin, cfg.StreamReconnectDelay),
	)

	j, err := journal.Open(cfg.JournalDir, account)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}()

	events := broadcast.New[projection.View](16)
	proj := projection.New(remote,
		projection.WithRenderer(events),
		projection.WithJournal(j),
		projection.WithHistory(cfg.HistoryDedup, cfg.HistoryLimit),
		projection.WithBackfillRange(cfg.BackfillMinLedger, cfg.BackfillMaxLedger),
		projection.WithEventBuffer(cfg.EventBuffer),
	)

	opts := api.Options{Events: events, AdminAPIKey: cfg.AdminAPIKey}

	if cfg.DatabaseURL != "" {
		pool, err := openArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := archive.NewPgRepository(pool)

		var hook archive.AfterCaptureHook
		if cfg.GoogleCredentialsJSON != "" && cfg.GoogleSpreadsheetID != "" {
			sw, err := export.NewSheetsWriter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentialsJSON)
			if err != nil {
				return err
			}
			hook = export.NewService(repo, sw)
			slog.Info("Google Sheets export enabled", "spreadsheet", cfg.GoogleSpreadsheetID)
		}

		capture := archive.NewCaptureWorker(proj, repo, cfg.CaptureInterval, hook)
		go capture.Run(ctx)

		opts.Captures = repo
		opts.Capturer = capture
	} else {
		slog.Warn("DATABASE_URL not set, captures disabled")
	}

	if cfg.AdminAPIKey == "" && opts.Capturer != nil {
		slog.Warn("ADMIN_API_KEY not set, capture endpoint is unprotected")
	}

	runDone := make(chan error, 1)
	go func() { runDone <- proj.Run(ctx) }()

	if err := proj.Post(ctx, projection.IdentityLoaded{Account: account, Secret: secret}); err != nil {
		return err
	}

	srv := api.NewServer(port, proj, opts)
	go func() {
		slog.Info("HTTP server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("Shutdown complete")
	return nil
}
