package model

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain SQL identifier that needs no escaping.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// TableDescriptor is the allow-list for one table: its name and ordered column list.
// Columns[0] is the integer primary key, used as the sort key for paging and hashing.
type TableDescriptor struct {
	Name    string
	Columns []string
}

// NewTableDescriptor validates the identifiers and moves primaryKey to the front of
// the column list, keeping the relative order of the remaining columns.
func NewTableDescriptor(name string, columns []string, primaryKey string) (TableDescriptor, error) {
	if !ValidIdentifier(name) {
		return TableDescriptor{}, fmt.Errorf("invalid table name %q", name)
	}
	ordered := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	found := false
	for _, c := range columns {
		if !ValidIdentifier(c) {
			return TableDescriptor{}, fmt.Errorf("invalid column name %q in table %s", c, name)
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			return TableDescriptor{}, fmt.Errorf("duplicate column %q in table %s", c, name)
		}
		seen[key] = struct{}{}
		if strings.EqualFold(c, primaryKey) {
			found = true
			continue
		}
		ordered = append(ordered, c)
	}
	if !found {
		return TableDescriptor{}, fmt.Errorf("table %s has no primary key column %q", name, primaryKey)
	}
	return TableDescriptor{Name: name, Columns: append([]string{primaryKey}, ordered...)}, nil
}

// PrimaryKey returns the sort and update key column.
func (d TableDescriptor) PrimaryKey() string {
	if len(d.Columns) == 0 {
		return ""
	}
	return d.Columns[0]
}

// NonKeyColumns returns every column except the primary key.
func (d TableDescriptor) NonKeyColumns() []string {
	if len(d.Columns) <= 1 {
		return nil
	}
	return d.Columns[1:]
}

// HasColumn reports whether column belongs to the table (case-insensitive).
func (d TableDescriptor) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

// Validate checks that the descriptor is usable for query building.
func (d TableDescriptor) Validate() error {
	if !ValidIdentifier(d.Name) {
		return fmt.Errorf("invalid table name %q", d.Name)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", d.Name)
	}
	for _, c := range d.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("invalid column name %q in table %s", c, d.Name)
		}
	}
	return nil
}
