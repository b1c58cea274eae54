// Package csvutil reads and writes CSV files with header-indexed rows.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Row maps a column name to its value for one CSV record.
type Row map[string]string

// ReadRows reads all records of a headered CSV file and returns them as
// header-indexed rows, along with the header in file order.
func ReadRows(r io.Reader) ([]Row, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// WriteRows writes rows as a CSV file with the given column order.
// Columns missing from a row are written as empty strings.
func WriteRows(w io.Writer, header []string, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, name := range header {
			record[i] = row[name]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
