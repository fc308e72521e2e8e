package gorm

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
)

// Module provides the gorm-backed database.ConnectionProvider. Dialects register themselves
// when their packages are imported.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(func(p *Provider) database.ConnectionProvider { return p }),
)
