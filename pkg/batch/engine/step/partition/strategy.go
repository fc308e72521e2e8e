package partition

import (
	"context"
	"fmt"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// BatchApplier writes one fetched batch to the target inside tx.
type BatchApplier interface {
	Apply(ctx context.Context, tx database.Tx, desc model.TableDescriptor, rows []model.Row) (int64, error)
}

// BulkInsert inserts the batch with multi-row INSERT statements.
type BulkInsert struct{}

// Apply implements BatchApplier.
func (BulkInsert) Apply(ctx context.Context, tx database.Tx, desc model.TableDescriptor, rows []model.Row) (int64, error) {
	q, err := query.NewInsert(desc, rows)
	if err != nil {
		return 0, err
	}
	return tx.InsertRows(ctx, q)
}

// Upsert inserts the batch, overwriting rows whose primary key already exists in the
// target, so a window can be applied again after a partial run.
type Upsert struct{}

// Apply implements BatchApplier.
func (Upsert) Apply(ctx context.Context, tx database.Tx, desc model.TableDescriptor, rows []model.Row) (int64, error) {
	q, err := query.NewUpsert(desc, rows)
	if err != nil {
		return 0, err
	}
	return tx.InsertRows(ctx, q)
}

// RowUpdate updates every non-key column of each row by primary key.
type RowUpdate struct{}

// Apply implements BatchApplier.
func (RowUpdate) Apply(ctx context.Context, tx database.Tx, desc model.TableDescriptor, rows []model.Row) (int64, error) {
	q, err := query.NewUpdate(desc, rows)
	if err != nil {
		return 0, err
	}
	return tx.UpdateRows(ctx, q)
}

// ApplierFor returns the strategy for mode: copy inserts into the cleared target, insert
// upserts and update updates existing rows.
func ApplierFor(mode model.Mode) (BatchApplier, error) {
	switch mode {
	case model.ModeCopy:
		return BulkInsert{}, nil
	case model.ModeInsert:
		return Upsert{}, nil
	case model.ModeUpdate:
		return RowUpdate{}, nil
	default:
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown transfer mode %s", mode))
	}
}
