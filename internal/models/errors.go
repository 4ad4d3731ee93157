package models

import (
	"errors"
	"strings"
)

// ErrEmptyBatch is returned by stages that need at least one row.
var ErrEmptyBatch = errors.New("empty batch")

// SchemaError reports required columns that are absent or declared twice.
type SchemaError struct {
	Missing    []string
	Duplicated []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicated columns: "+strings.Join(e.Duplicated, ", "))
	}
	return "schema error: " + strings.Join(parts, "; ")
}

// CheckColumns verifies that every required column is declared exactly once.
func CheckColumns(cols []string) error {
	seen := make(map[string]int, len(cols))
	for _, c := range cols {
		seen[strings.TrimSpace(c)]++
	}
	var e SchemaError
	for _, c := range Columns {
		switch n := seen[c]; {
		case n == 0:
			e.Missing = append(e.Missing, c)
		case n > 1:
			e.Duplicated = append(e.Duplicated, c)
		}
	}
	if len(e.Missing) > 0 || len(e.Duplicated) > 0 {
		return &e
	}
	return nil
}
