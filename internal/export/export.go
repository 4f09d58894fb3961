package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/dataset"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// ErrCellTooLong is returned when a value does not fit in an XLSX cell.
// Use CSV for datasets with very long comment bodies.
var ErrCellTooLong = errors.New("value exceeds the XLSX cell limit")

// Format is a dataset file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use csv or xlsx)", s)
}

// Path returns the output file of a dataset kind
func Path(dir string, kind domain.DatasetKind, format Format) string {
	return filepath.Join(dir, kind.FileName()+"."+string(format))
}

// Write stores table under dir and returns the written path. The file is
// replaced atomically so a failed export never leaves a truncated file.
func Write[R domain.Record](dir string, kind domain.DatasetKind, format Format, table *dataset.Table[R]) (string, error) {
	staged, err := Stage(dir, kind, format, table)
	if err != nil {
		return "", err
	}
	if err := staged.Commit(); err != nil {
		return "", err
	}
	return staged.Path, nil
}

// Staged is a fully written export that has not replaced Path yet
type Staged struct {
	Path string
	tmp  string
}

// Stage writes table to a temp file next to its final path. Commit moves it
// into place; Discard removes it and leaves any previous export untouched.
func Stage[R domain.Record](dir string, kind domain.DatasetKind, format Format, table *dataset.Table[R]) (*Staged, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := Path(dir, kind, format)

	tmp, err := os.CreateTemp(dir, "."+kind.FileName()+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	switch format {
	case FormatCSV:
		err = WriteCSV(tmp, table)
	case FormatXLSX:
		err = WriteXLSX(tmp, string(kind), table)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return &Staged{Path: path, tmp: tmp.Name()}, nil
}

// Commit replaces Path with the staged file
func (s *Staged) Commit() error {
	if err := os.Rename(s.tmp, s.Path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("failed to move %s into place: %w", s.Path, err)
	}
	return nil
}

// Discard drops the staged file. It is a no-op after Commit.
func (s *Staged) Discard() {
	os.Remove(s.tmp)
}

// WriteCSV writes a header row followed by every row. Null cells are empty.
func WriteCSV[R domain.Record](w io.Writer, table *dataset.Table[R]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := cw.Write(row.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the table as a single-sheet workbook
func WriteXLSX[R domain.Record](w io.Writer, sheet string, table *dataset.Table[R]) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", toCells(table.Columns)); err != nil {
		return err
	}
	for i, row := range table.Rows {
		values := row.Values()
		if err := checkCellLengths(table.Columns, values, i+1); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(values)); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// checkCellLengths rejects values excelize would silently truncate
func checkCellLengths(columns, values []string, row int) error {
	for j, v := range values {
		if len(v) <= excelize.TotalCellChars {
			continue
		}
		if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
			col := fmt.Sprintf("%d", j+1)
			if j < len(columns) {
				col = columns[j]
			}
			return fmt.Errorf("row %d column %s: %w (%d characters, limit %d)", row, col, ErrCellTooLong, n, excelize.TotalCellChars)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
