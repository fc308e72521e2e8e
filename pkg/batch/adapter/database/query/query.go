// Package query builds validated descriptions of the statements the Row-Batch I/O runs.
// Every identifier is checked against a model.TableDescriptor before a description is
// returned; values stay in Filter conditions and rows and are only ever bound as parameters.
package query

import (
	"errors"
	"fmt"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

const moduleName = "query"

// Page selects a primary-key ordered window [Offset, Offset+Limit) of the filtered rows.
type Page struct {
	Table   string
	Columns []string
	OrderBy string
	Filter  model.Filter
	Offset  int64
	Limit   int64
}

// Scan selects every filtered row in primary-key order.
type Scan struct {
	Table   string
	Columns []string
	OrderBy string
	Filter  model.Filter
}

// Count counts the filtered rows.
type Count struct {
	Table  string
	Filter model.Filter
}

// Insert adds rows whose values follow Columns. When ConflictKey is set, a row whose key
// already exists overwrites the existing row instead of failing.
type Insert struct {
	Table       string
	Columns     []string
	Rows        []model.Row
	ConflictKey string
}

// NonKeyColumns returns Columns without ConflictKey.
func (q Insert) NonKeyColumns() []string {
	cols := make([]string, 0, len(q.Columns))
	for _, c := range q.Columns {
		if c != q.ConflictKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// Update sets Columns of each row where Key equals the row's first value.
type Update struct {
	Table   string
	Key     string
	Columns []string
	Rows    []model.Row
}

// Delete removes every row of Table.
type Delete struct {
	Table string
}

// ValidateTable checks a bare table name before a descriptor exists, e.g. for schema probes.
func ValidateTable(table string) error {
	if !model.ValidIdentifier(table) {
		return exception.NewInvalidIdentifier(moduleName, table)
	}
	return nil
}

// NewPage returns a validated page description.
func NewPage(desc model.TableDescriptor, filter model.Filter, offset, limit int64) (Page, error) {
	if err := validate(desc, filter); err != nil {
		return Page{}, err
	}
	if offset < 0 || limit <= 0 {
		return Page{}, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("invalid page offset=%d limit=%d", offset, limit))
	}
	return Page{
		Table:   desc.Name,
		Columns: desc.Columns,
		OrderBy: desc.PrimaryKey(),
		Filter:  filter,
		Offset:  offset,
		Limit:   limit,
	}, nil
}

// NewScan returns a validated full-scan description.
func NewScan(desc model.TableDescriptor, filter model.Filter) (Scan, error) {
	if err := validate(desc, filter); err != nil {
		return Scan{}, err
	}
	return Scan{Table: desc.Name, Columns: desc.Columns, OrderBy: desc.PrimaryKey(), Filter: filter}, nil
}

// NewCount returns a validated count description.
func NewCount(desc model.TableDescriptor, filter model.Filter) (Count, error) {
	if err := validate(desc, filter); err != nil {
		return Count{}, err
	}
	return Count{Table: desc.Name, Filter: filter}, nil
}

// NewInsert returns a validated insert description.
func NewInsert(desc model.TableDescriptor, rows []model.Row) (Insert, error) {
	if err := validate(desc, model.Filter{}); err != nil {
		return Insert{}, err
	}
	if err := checkWidth(desc, rows); err != nil {
		return Insert{}, err
	}
	return Insert{Table: desc.Name, Columns: desc.Columns, Rows: rows}, nil
}

// NewUpsert returns a validated insert description that replaces rows with an existing
// primary key.
func NewUpsert(desc model.TableDescriptor, rows []model.Row) (Insert, error) {
	q, err := NewInsert(desc, rows)
	if err != nil {
		return Insert{}, err
	}
	q.ConflictKey = desc.PrimaryKey()
	return q, nil
}

// NewUpdate returns a validated update-by-primary-key description.
func NewUpdate(desc model.TableDescriptor, rows []model.Row) (Update, error) {
	if err := validate(desc, model.Filter{}); err != nil {
		return Update{}, err
	}
	if len(desc.NonKeyColumns()) == 0 {
		return Update{}, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("table %s has no columns to update", desc.Name))
	}
	if err := checkWidth(desc, rows); err != nil {
		return Update{}, err
	}
	return Update{Table: desc.Name, Key: desc.PrimaryKey(), Columns: desc.NonKeyColumns(), Rows: rows}, nil
}

// NewDelete returns a validated delete-all description.
func NewDelete(desc model.TableDescriptor) (Delete, error) {
	if err := validate(desc, model.Filter{}); err != nil {
		return Delete{}, err
	}
	return Delete{Table: desc.Name}, nil
}

func validate(desc model.TableDescriptor, filter model.Filter) error {
	if err := desc.Validate(); err != nil {
		return exception.NewBatchError(moduleName, "invalid table descriptor", errors.Join(exception.ErrInvalidIdentifier, err), false, false)
	}
	for _, c := range filter.Conditions {
		if !desc.HasColumn(c.Column) {
			return exception.NewInvalidIdentifier(moduleName, fmt.Sprintf("%s.%s", desc.Name, c.Column))
		}
		switch c.Op {
		case model.OpGte, model.OpLt, model.OpEq:
		default:
			return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unsupported operator %q", c.Op))
		}
	}
	return nil
}

func checkWidth(desc model.TableDescriptor, rows []model.Row) error {
	for i, r := range rows {
		if len(r) != len(desc.Columns) {
			return exception.NewInvalidConfiguration(moduleName,
				fmt.Sprintf("row %d of %s has %d values, want %d", i, desc.Name, len(r), len(desc.Columns)))
		}
	}
	return nil
}
