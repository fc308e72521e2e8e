package model

import (
	"fmt"
	"strings"
	"time"
)

// Operator is a comparison allowed in a Filter condition.
type Operator string

const (
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpEq  Operator = "="
)

// Condition compares one column with a bound value.
type Condition struct {
	Column string
	Op     Operator
	Value  interface{}
}

// Gte returns the condition column >= value.
func Gte(column string, value interface{}) Condition {
	return Condition{Column: column, Op: OpGte, Value: value}
}

// Lt returns the condition column < value.
func Lt(column string, value interface{}) Condition {
	return Condition{Column: column, Op: OpLt, Value: value}
}

// Eq returns the condition column = value.
func Eq(column string, value interface{}) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// Filter is a conjunction of conditions. The zero Filter matches every row.
type Filter struct {
	Conditions []Condition
}

// NewFilter returns the conjunction of conds.
func NewFilter(conds ...Condition) Filter {
	return Filter{Conditions: conds}
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0
}

// Columns returns the columns referenced by the filter, in condition order.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		cols = append(cols, c.Column)
	}
	return cols
}

// String renders the filter for logs. Values are shown, never sent to a database this way.
func (f Filter) String() string {
	if f.IsEmpty() {
		return "<all rows>"
	}
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		v := c.Value
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Column, c.Op, v))
	}
	return strings.Join(parts, " AND ")
}
