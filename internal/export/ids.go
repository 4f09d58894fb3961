package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadTicketIDs loads the id column of a previously exported tickets file
// (CSV or XLSX), in file order.
func ReadTicketIDs(path string) ([]int64, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}
	return parseIDColumn(rows)
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func parseIDColumn(rows [][]string) ([]int64, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	idx := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "id") {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("no id column in header")
	}

	ids := make([]int64, 0, len(rows)-1)
	for n, r := range rows[1:] {
		if idx >= len(r) || strings.TrimSpace(r[idx]) == "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(r[idx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q", n+2, r[idx])
		}
		ids = append(ids, id)
	}
	return ids, nil
}
