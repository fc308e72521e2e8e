package database

import (
	"context"
	"errors"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// DefaultPrimaryKey is the key column used when a table configures none.
const DefaultPrimaryKey = "id"

// Describe probes table on exec and returns its descriptor with primaryKey first.
func Describe(ctx context.Context, exec RowExecutor, table, primaryKey string) (model.TableDescriptor, error) {
	if primaryKey == "" {
		primaryKey = DefaultPrimaryKey
	}
	cols, err := exec.ProbeColumns(ctx, table)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	desc, err := model.NewTableDescriptor(table, cols, primaryKey)
	if err != nil {
		return model.TableDescriptor{}, exception.NewBatchError("database", "table schema is not usable", errors.Join(exception.ErrInvalidIdentifier, err), false, false)
	}
	return desc, nil
}
