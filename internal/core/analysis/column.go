package analysis

import (
	"fmt"
	"strings"
)

// Column is one of the scalar signal axes recorded per sample.
type Column string

const (
	ColumnX Column = "x"
	ColumnY Column = "y"
	ColumnZ Column = "z"
)

// AllColumns returns the canonical column order used when a query names none.
func AllColumns() []Column {
	return []Column{ColumnX, ColumnY, ColumnZ}
}

// Valid reports whether c is a known column.
func (c Column) Valid() bool {
	switch c {
	case ColumnX, ColumnY, ColumnZ:
		return true
	}
	return false
}

func (c Column) String() string {
	return string(c)
}

// ParseColumns turns raw query values into a column list. Each raw value may
// itself be a comma separated list. An empty input selects every column.
// Duplicates are dropped, keeping the first occurrence.
func ParseColumns(raw ...string) ([]Column, error) {
	var cols []Column
	seen := make(map[Column]bool, 3)

	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			col := Column(part)
			if !col.Valid() {
				return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, part)
			}
			if seen[col] {
				continue
			}
			seen[col] = true
			cols = append(cols, col)
		}
	}

	if len(cols) == 0 {
		return AllColumns(), nil
	}
	return cols, nil
}
