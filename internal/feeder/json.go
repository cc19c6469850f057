package feeder

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/torosent/stationpivot/internal/record"
)

// JSONFeeder reads rows from a JSON file containing an array of objects.
// It is safe for concurrent access.
type JSONFeeder struct {
	rowSet
}

// NewJSONFeeder creates a new JSON feeder from the given file path. path
// selects the array with gjson syntax; empty means the document root.
// Alias sources are gjson paths evaluated against each object, so nested
// values such as "station.id" can feed a flat column.
func NewJSONFeeder(file, path string, aliases map[string]string) (*JSONFeeder, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}

	doc := gjson.ParseBytes(data)
	if path != "" {
		doc = doc.Get(path)
		if !doc.Exists() {
			return nil, fmt.Errorf("decode JSON: path %q not found", path)
		}
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array of objects")
	}

	var rows []record.Row
	var convErr error
	doc.ForEach(func(_, obj gjson.Result) bool {
		if !obj.IsObject() {
			convErr = fmt.Errorf("record %d is not an object", len(rows))
			return false
		}
		row := make(record.Row)
		obj.ForEach(func(key, value gjson.Result) bool {
			// Convert all values to strings
			row[key.String()] = value.String()
			return true
		})
		for canonical, source := range aliases {
			if _, ok := row[canonical]; ok {
				continue
			}
			if v := obj.Get(source); v.Exists() {
				row[canonical] = v.String()
			}
		}
		rows = append(rows, row)
		return true
	})
	if convErr != nil {
		return nil, convErr
	}

	return &JSONFeeder{rowSet{rows: rows}}, nil
}
