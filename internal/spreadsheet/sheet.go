// Package spreadsheet turns uploaded CSV and XLSX files into ordered rows of
// header/value cells. Only the first worksheet of a workbook is read.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Cell is one header/value pair. Value is a string, a float64 for numeric
// spreadsheet cells, or nil for an empty cell.
type Cell struct {
	Header string
	Value  any
}

// Row is one data row. Number is the 1-based row number in the source
// sheet, so the first data row under the header is row 2.
type Row struct {
	Number int
	Cells  []Cell
}

// Get returns the value under the exact header text
func (r Row) Get(header string) (any, bool) {
	for _, c := range r.Cells {
		if c.Header == header {
			return c.Value, true
		}
	}
	return nil, false
}

// Sheet is a fully materialized table
type Sheet struct {
	Headers []string
	Rows    []Row
}

// Read dispatches on the filename extension
func Read(filename string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// newSheet builds a Sheet from a header row and raw records. Fully blank
// records are dropped, matching how spreadsheet tools treat trailing rows.
// numbers gives each record's sheet row; when nil, records are assumed to
// follow the header contiguously.
func newSheet(header []string, records [][]any, numbers []int) *Sheet {
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	sheet := &Sheet{Headers: headers}
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		number := i + 2
		if numbers != nil {
			number = numbers[i]
		}
		row := Row{Number: number, Cells: make([]Cell, 0, len(headers))}
		for col, h := range headers {
			if h == "" {
				continue
			}
			var value any
			if col < len(record) {
				value = record[col]
			}
			row.Cells = append(row.Cells, Cell{Header: h, Value: value})
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func isBlank(record []any) bool {
	for _, v := range record {
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}
