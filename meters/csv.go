package meters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSV reads readings from a CSV file whose first line is the header.
// Semicolon and comma separators are detected from the header line.
func ParseCSV(r io.Reader, m ColumnMapping) ([]Reading, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectSeparator(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrColumnNotFound)
	}

	idx, err := resolveColumns(records[0], m)
	if err != nil {
		return nil, nil, err
	}
	readings, rowErrs := parseRows(records[1:], idx, 2)
	return readings, rowErrs, nil
}

func detectSeparator(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}
