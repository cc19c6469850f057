package feeder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/torosent/stationpivot/internal/record"
)

// CSVFeeder reads rows from a CSV file. It is safe for concurrent access.
type CSVFeeder struct {
	rowSet
}

// NewCSVFeeder creates a new CSV feeder from the given file path.
// The first row is treated as the header containing column names.
func NewCSVFeeder(path string, aliases map[string]string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	dataRows := rows[1:]

	out := make([]record.Row, 0, len(dataRows))
	for i, row := range dataRows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}

		r := make(record.Row, len(header))
		for j, column := range header {
			r[strings.TrimSpace(column)] = row[j]
		}
		applyAliases(r, aliases)
		out = append(out, r)
	}

	return &CSVFeeder{rowSet{rows: out}}, nil
}
