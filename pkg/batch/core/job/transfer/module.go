package transfer

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tablesync/pkg/batch/component/partitioner"
)

// Module provides the Orchestrator with the range partitioner. The RetryDecider comes
// from partition.Module.
var Module = fx.Options(
	fx.Provide(fx.Annotate(partitioner.NewRangePartitioner, fx.As(new(partitioner.Partitioner)))),
	fx.Provide(NewOrchestrator),
)
