package metrics

import (
	"context"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// Each Start method returns a derived context and a function that ends the span.
type Tracer interface {
	// StartRunSpan starts the span of a whole TransferAll or TransferUpdates run.
	StartRunSpan(ctx context.Context, operation string, runID string) (context.Context, func())

	// StartTableSpan starts a span for one table transfer.
	StartTableSpan(ctx context.Context, table string, mode model.Mode) (context.Context, func())

	// StartPartitionSpan starts a span for one worker run.
	StartPartitionSpan(ctx context.Context, unit model.WorkUnit) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
