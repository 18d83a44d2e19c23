package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/trustview/internal/archive"
	"github.com/mtlprog/trustview/internal/config"
	"github.com/mtlprog/trustview/internal/export"
)

func exportCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the latest archived capture to an XLSX file or Google Sheet",
		Flags: []cli.Flag{
			accountFlag,
			&cli.StringFlag{
				Name:  "xlsx",
				Usage: "output workbook path",
			},
			&cli.StringFlag{
				Name:  "sheet",
				Usage: "Google spreadsheet ID",
				Value: cfg.GoogleSpreadsheetID,
			},
		},
		Action: func(c *cli.Context) error {
			return runExport(c.Context, cfg, c.String("account"), c.String("xlsx"), c.String("sheet"))
		},
	}
}

func runExport(ctx context.Context, cfg config.Config, account, xlsxPath, sheetID string) error {
	writer, err := tableWriter(ctx, cfg, xlsxPath, sheetID)
	if err != nil {
		return err
	}

	pool, err := openArchive(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return export.NewService(archive.NewPgRepository(pool), writer).Export(ctx, account)
}

func tableWriter(ctx context.Context, cfg config.Config, xlsxPath, sheetID string) (export.TableWriter, error) {
	switch {
	case xlsxPath != "":
		return export.NewXLSXWriter(xlsxPath), nil
	case sheetID != "":
		if cfg.GoogleCredentialsJSON == "" {
			return nil, fmt.Errorf("GOOGLE_CREDENTIALS_JSON is required for sheet export")
		}
		return export.NewSheetsWriter(ctx, sheetID, cfg.GoogleCredentialsJSON)
	default:
		return nil, fmt.Errorf("one of --xlsx or --sheet is required")
	}
}
