package meters

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads readings from a worksheet whose first row is the header.
// An empty sheet name selects the first worksheet.
func ParseXLSX(r io.Reader, sheet string, m ColumnMapping) ([]Reading, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("%w: workbook has no sheets", ErrColumnNotFound)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: empty sheet %q", ErrColumnNotFound, sheet)
	}

	idx, err := resolveColumns(rows[0], m)
	if err != nil {
		return nil, nil, err
	}
	readings, rowErrs := parseRows(rows[1:], idx, 2)
	return readings, rowErrs, nil
}
