package watermark

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	core "github.com/tigerroll/tablesync/pkg/batch/core/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// Module provides the watermark.Store selected by watermark.store.
var Module = fx.Options(
	fx.Provide(NewStore),
)

// NewStore returns the configured store wrapped so it never moves backwards. The database
// store's table is migrated before it is returned.
func NewStore(cfg *config.Config, provider *gormadapter.Provider) (core.Store, error) {
	wm := cfg.Tablesync.Watermark
	loc, err := time.LoadLocation(cfg.Tablesync.System.Timezone)
	if err != nil {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown timezone %q", cfg.Tablesync.System.Timezone))
	}

	switch wm.Store {
	case "", config.WatermarkStoreFile:
		return core.Monotonic(NewFileStore(wm.Path, loc)), nil
	case config.WatermarkStoreDatabase:
		dbRef := wm.DBRef
		if dbRef == "" {
			dbRef = cfg.Tablesync.Infrastructure.TargetDBRef
		}
		store := NewDBStore(provider, dbRef, wm.Key, loc)
		if err := store.Migrate(context.Background()); err != nil {
			return nil, err
		}
		return core.Monotonic(store), nil
	default:
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown watermark store %q", wm.Store))
	}
}
