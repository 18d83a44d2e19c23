package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/trustview/internal/config"
	"github.com/mtlprog/trustview/internal/journal"
	"github.com/mtlprog/trustview/internal/projection"
	"github.com/mtlprog/trustview/internal/rippled"
)

func replayCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "rebuild the projection from the journal and print it as JSON",
		Flags: []cli.Flag{
			accountFlag,
			&cli.BoolFlag{
				Name:  "snapshot",
				Usage: "load the current trust lines from rippled before replaying",
			},
		},
		Action: func(c *cli.Context) error {
			var lines linesSource
			if c.Bool("snapshot") {
				lines = rippled.NewClient(cfg.RippledRPCURL, cfg.RPCRetryMax, cfg.RPCRetryBaseDelay)
			}
			return runReplay(c.Context, cfg, c.String("account"), lines, os.Stdout)
		},
	}
}

// linesSource is the part of the rippled client replay needs.
type linesSource interface {
	AccountLines(ctx context.Context, account string) (rippled.LinesResult, error)
}

func runReplay(ctx context.Context, cfg config.Config, account string, lines linesSource, out io.Writer) error {
	j, err := journal.Open(cfg.JournalDir, account)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Entries()
	if err != nil {
		return err
	}

	proj := projection.New(nil, projection.WithHistory(cfg.HistoryDedup, cfg.HistoryLimit))
	proj.Apply(ctx, projection.IdentityLoaded{Account: account})

	if lines != nil {
		res, err := lines.AccountLines(ctx, account)
		if err != nil {
			return fmt.Errorf("loading trust lines: %w", err)
		}
		proj.Apply(ctx, projection.LinesSnapshot{Result: res})
	}

	for _, entry := range entries {
		proj.Apply(ctx, projection.LiveTx{Entry: entry, Replayed: true})
	}
	slog.Info("replay: journal applied", "account", account, "entries", len(entries))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(proj.View())
}
