package transfer

import (
	"time"

	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// InsertWindow selects rows created at or after the watermark.
func InsertWindow(table config.TableConfig, watermark time.Time) model.Filter {
	return model.NewFilter(model.Gte(table.CreatedAtColumn, watermark))
}

// UpdateWindow selects rows modified at or after the watermark that existed before it.
// Rows in the insert window are excluded, so the two windows never overlap.
func UpdateWindow(table config.TableConfig, watermark time.Time) model.Filter {
	return model.NewFilter(
		model.Gte(table.UpdatedAtColumn, watermark),
		model.Lt(table.CreatedAtColumn, watermark),
	)
}
