package logger

import "go.uber.org/fx"

// Module installs the facade as fx's event logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLogger),
)
