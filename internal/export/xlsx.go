package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXWriter implements TableWriter by saving an Excel workbook to a file.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that saves to path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write saves one sheet per table. An existing workbook at path is reused:
// regular tables are rewritten and Append tables gain their new rows below
// the rows already there.
func (w *XLSXWriter) Write(_ context.Context, tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write")
	}

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for _, t := range tables {
		existing, err := f.GetRows(t.Name)
		exists := err == nil
		switch {
		case exists && t.Append && len(existing) > 0:
			if err := appendSheetRows(f, t, len(existing)); err != nil {
				return err
			}
			continue
		case exists:
			if err := clearSheet(f, t.Name, len(existing)); err != nil {
				return err
			}
		default:
			if _, err := f.NewSheet(t.Name); err != nil {
				return fmt.Errorf("creating sheet %s: %w", t.Name, err)
			}
		}
		if err := writeSheet(f, t, bold); err != nil {
			return err
		}
	}

	idx, err := f.GetSheetIndex(defaultSheet)
	if err == nil && idx >= 0 && !lo.ContainsBy(tables, func(t Table) bool { return t.Name == defaultSheet }) {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("removing default sheet: %w", err)
		}
	}
	if idx, err := f.GetSheetIndex(tables[0].Name); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}

func (w *XLSXWriter) open() (*excelize.File, error) {
	if _, err := os.Stat(w.path); errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", w.path, err)
	}
	return f, nil
}

func clearSheet(f *excelize.File, sheet string, rows int) error {
	for r := rows; r >= 1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("clearing %s row %d: %w", sheet, r, err)
		}
	}
	return nil
}

func appendSheetRows(f *excelize.File, t Table, used int) error {
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, used+i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return fmt.Errorf("appending %s row: %w", t.Name, err)
		}
	}
	return nil
}

func writeSheet(f *excelize.File, t Table, headerStyle int) error {
	header := headerRow(t.Header)
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", t.Name, err)
	}
	if err := f.SetRowStyle(t.Name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", t.Name, err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", t.Name, i+1, err)
		}
	}

	return f.SetPanes(t.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
