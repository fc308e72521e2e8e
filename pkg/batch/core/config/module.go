// Package config provides core configuration structures and utilities for tablesync.
// This module exposes sections of *Config to fx so that components depend only on what they use.
package config

import "go.uber.org/fx"

// Module provides configuration sections to fx. *Config itself is supplied by the caller.
var Module = fx.Options(
	fx.Provide(
		func(cfg *Config) *LoggingConfig { return &cfg.Tablesync.System.Logging },
		func(cfg *Config) *BatchConfig { return &cfg.Tablesync.Batch },
		func(cfg *Config) *WatermarkConfig { return &cfg.Tablesync.Watermark },
		func(cfg *Config) *MetricsConfig { return &cfg.Tablesync.Metrics },
		func(cfg *Config) *TracingConfig { return &cfg.Tablesync.Tracing },
	),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
