// Package feeder loads raw test-result rows from CSV and JSON datasets.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/torosent/stationpivot/internal/record"
)

// Feeder provides rows from a dataset in file order.
// Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next row from the dataset or ErrExhausted.
	Next(ctx context.Context) (record.Row, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of rows in the dataset.
	Len() int
}

// ErrExhausted is returned when a feeder has no more rows.
var ErrExhausted = errors.New("feeder exhausted: no more records available")

// Format names a dataset encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat resolves format, falling back to the file extension of path
// when format is empty.
func DetectFormat(path, format string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(format))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	case "":
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return FormatJSON, nil
		}
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported input format %q (supported: csv, json)", format)
	}
}

// Options tunes Open.
type Options struct {
	Format string
	// Aliases maps a canonical column name to the column (or, for JSON, the
	// gjson path) holding it in the dataset.
	Aliases map[string]string
	// Path selects the record array inside a JSON document; empty means the
	// document itself is the array.
	Path string
}

// Open creates the feeder matching the dataset format.
func Open(path string, opts Options) (Feeder, error) {
	format, err := DetectFormat(path, opts.Format)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return NewJSONFeeder(path, opts.Path, opts.Aliases)
	default:
		return NewCSVFeeder(path, opts.Aliases)
	}
}

// ReadAll drains f.
func ReadAll(ctx context.Context, f Feeder) ([]record.Row, error) {
	rows := make([]record.Row, 0, f.Len())
	for {
		row, err := f.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// applyAliases copies aliased source columns onto their canonical names.
// A canonical column already present in the row is left untouched.
func applyAliases(row record.Row, aliases map[string]string) {
	for canonical, source := range aliases {
		if _, ok := row[canonical]; ok {
			continue
		}
		if v, ok := row[source]; ok {
			row[canonical] = v
		}
	}
}

// rowSet serves a fixed slice of rows sequentially.
type rowSet struct {
	rows  []record.Row
	index int
	mu    sync.Mutex
}

func (s *rowSet) Next(ctx context.Context) (record.Row, error) {
	// Check context cancellation first
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.rows) {
		return nil, ErrExhausted
	}

	row := s.rows[s.index]
	s.index++
	return row, nil
}

func (s *rowSet) Close() error {
	return nil
}

func (s *rowSet) Len() int {
	return len(s.rows)
}
