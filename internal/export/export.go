// Package export writes archived projection captures to spreadsheets.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/trustview/internal/archive"
	"github.com/mtlprog/trustview/internal/projection"
)

// Table is one named sheet of output.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
	// Append marks tables that accumulate one row per export instead of
	// being rewritten.
	Append bool
}

// TableWriter writes tables to a spreadsheet destination.
type TableWriter interface {
	Write(ctx context.Context, tables []Table) error
}

// CaptureSource provides archived captures.
type CaptureSource interface {
	Latest(ctx context.Context, address string) (*archive.Capture, error)
}

// Service loads the latest capture of an account and hands its tables to a
// TableWriter.
type Service struct {
	captures CaptureSource
	writer   TableWriter
}

// NewService creates a new export Service.
func NewService(captures CaptureSource, writer TableWriter) *Service {
	return &Service{captures: captures, writer: writer}
}

// Export writes the latest capture of address.
// Implements archive.AfterCaptureHook.
func (s *Service) Export(ctx context.Context, address string) error {
	capture, err := s.captures.Latest(ctx, address)
	if err != nil {
		return fmt.Errorf("loading latest capture: %w", err)
	}
	view, err := capture.Decode()
	if err != nil {
		return err
	}

	tables := BuildTables(view, capture.CapturedAt)
	if err := s.writer.Write(ctx, tables); err != nil {
		return fmt.Errorf("writing tables: %w", err)
	}
	slog.Info("export: capture written", "address", address, "capture", capture.ID, "records", len(view.History), "lines", len(view.Lines))
	return nil
}

// BuildTables renders a view as the HISTORY, LINES and SUMMARY tables.
func BuildTables(view projection.View, at time.Time) []Table {
	return []Table{
		historyTable(view),
		linesTable(view),
		summaryTable(view, at),
	}
}
