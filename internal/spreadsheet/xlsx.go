package spreadsheet

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first worksheet of an Office Open XML workbook.
// Numeric cells (including date-formatted ones, which Excel stores as serial
// day numbers) come back as float64; everything else as text.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	name := sheets[0]

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	records := make([][]any, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		values := make([]any, len(raw))
		for col, text := range raw {
			if text == "" {
				continue
			}
			values[col] = cellValue(f, name, col+1, i+2, text)
		}
		records = append(records, values)
	}

	return newSheet(rows[0], records, nil), nil
}

func cellValue(f *excelize.File, sheet string, col, row int, text string) any {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return text
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return text
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return n
		}
	}
	return text
}
