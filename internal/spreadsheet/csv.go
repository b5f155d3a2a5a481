package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrEmptySheet is returned when a file has no header row
var ErrEmptySheet = errors.New("spreadsheet has no header row")

// ReadCSV reads a comma separated file. Every cell is kept as text; numeric
// coercion happens during normalization. Row numbers are source line numbers,
// so empty lines skipped by the parser still count.
func ReadCSV(r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySheet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var (
		records [][]any
		lines   []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		values := make([]any, len(record))
		for i, v := range record {
			if v != "" {
				values[i] = v
			}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, values)
		lines = append(lines, line)
	}

	return newSheet(header, records, lines), nil
}
