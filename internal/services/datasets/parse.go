package datasets

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// dataset file names follow <category>__<name>.csv or <category>__<name>.json.
const categorySeparator = "__"

// Series maps timestamp to value for one dataset file.
type Series map[string]float64

// splitName extracts the category and keeps the full base name as the series
// identifier. Files without a category part are skipped by the caller.
func splitName(path string) (category, file string, ok bool) {
	file = filepath.Base(path)
	base := strings.TrimSuffix(file, filepath.Ext(file))
	idx := strings.Index(base, categorySeparator)
	if idx <= 0 || idx+len(categorySeparator) >= len(base) {
		return "", "", false
	}
	return base[:idx], file, true
}

// parseFile reads one dataset file into a series, dispatching on extension.
func parseFile(path string) (Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".json":
		return parseJSON(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
}

// parseCSV reads timestamp,value rows. A first row whose value column does
// not parse as a number is treated as a header and skipped.
func parseCSV(path string) (Series, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the watched data directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	series := make(Series, len(rows))
	for i, row := range rows {
		value, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("%s row %d: bad value %q", filepath.Base(path), i+1, row[1])
		}
		series[strings.TrimSpace(row[0])] = value
	}
	return series, nil
}

// parseJSON reads a {timestamp: value} object.
func parseJSON(path string) (Series, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the watched data directory
	if err != nil {
		return nil, err
	}

	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return series, nil
}
