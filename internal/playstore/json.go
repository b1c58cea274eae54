package playstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMissingField marks a snapshot that lacks a field the schema
// treats as required.
var ErrMissingField = errors.New("missing required field")

// Details holds one parsed app-store JSON snapshot. Snapshots are
// deeply nested and only partially schematized, so values stay untyped
// and accessors pull out the handful of keys the pipeline needs.
type Details map[string]any

// readDetailsFile parses the JSON snapshot at path and returns it with
// the file's modification time (unix seconds). A missing file is not
// an error; it yields a nil Details.
func readDetailsFile(path string) (Details, int64, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read details file %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("stat details file %s: %w", path, err)
	}
	var details Details
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, 0, fmt.Errorf("parse details file %s: %w", path, err)
	}
	return details, info.ModTime().Unix(), nil
}

func (d Details) childMap(key string) Details {
	if m, ok := d[key].(map[string]any); ok {
		return Details(m)
	}
	return nil
}

func (d Details) childSlice(key string) []any {
	if s, ok := d[key].([]any); ok {
		return s
	}
	return nil
}

func (d Details) optionalString(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Details) optionalNumber(key string) *float64 {
	if n, ok := d[key].(float64); ok {
		return &n
	}
	return nil
}

// requiredString returns the string at key or ErrMissingField if the
// key is absent. Only the description variants use this; every other
// field is optional.
func (d Details) requiredString(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	s, _ := v.(string)
	return s, nil
}

func (d Details) stringList(key string) []string {
	var out []string
	for _, v := range d.childSlice(key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
