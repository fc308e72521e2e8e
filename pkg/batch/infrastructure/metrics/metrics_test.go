package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()

	r.RecordTableStart(ctx, "users", model.ModeCopy)
	r.RecordBatchCommit(ctx, "users", model.ModeCopy, 5000)
	r.RecordBatchCommit(ctx, "users", model.ModeCopy, 1000)
	r.RecordWorkerRetry(ctx, "users", "connection")
	r.RecordSagaRound(ctx, "users", 1, 2)
	r.RecordValidation(ctx, model.ValidationResult{Table: "users", RowCountMatch: true})
	r.RecordTableEnd(ctx, "users", model.ModeCopy, model.TransferStatusCompleted, 2*time.Second)

	assert.Equal(t, 6000.0, testutil.ToFloat64(r.rowsCommitted.WithLabelValues("users", "copy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.batchesCommitted.WithLabelValues("users", "copy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workerRetryCounter.WithLabelValues("users", "connection")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.sagaFailedPartitions.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.validationCounter.WithLabelValues("users", "hash_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tableStatusCounter.WithLabelValues("users", "copy", "COMPLETED")))
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordBatchCommit(context.Background(), "products", model.ModeInsert, 10)

	path := filepath.Join(t.TempDir(), "tablesync.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tablesync_rows_committed_total{mode="insert",table="products"} 10`)
}

func TestValidationOutcome(t *testing.T) {
	assert.Equal(t, "count_mismatch", validationOutcome(model.ValidationResult{}))
	assert.Equal(t, "hash_mismatch", validationOutcome(model.ValidationResult{RowCountMatch: true}))
	assert.Equal(t, "match", validationOutcome(model.ValidationResult{RowCountMatch: true, ContentHashMatch: true}))
}

func TestOpenTelemetryRecorder_RecordsToMeter(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r, err := NewOpenTelemetryRecorder(mp)
	require.NoError(t, err)
	r.RecordBatchCommit(ctx, "users", model.ModeCopy, 5000)
	r.RecordBatchCommit(ctx, "users", model.ModeCopy, 7000)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var rows int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "tablesync.rows.committed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				rows += dp.Value
			}
		}
	}
	assert.Equal(t, int64(12000), rows)
}

func TestOpenTelemetryTracer_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(tp)

	ctx, endTable := tracer.StartTableSpan(context.Background(), "users", model.ModeCopy)
	pctx, endPartition := tracer.StartPartitionSpan(ctx, model.WorkUnit{WorkerID: 1, Table: "users", Range: model.Range{Start: 0, End: 10}})
	tracer.RecordEvent(pctx, "batch committed", map[string]interface{}{"rows": 10})
	tracer.RecordError(pctx, "worker", errors.New("boom"))
	endPartition()
	endTable()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "users partition1", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "batch committed", ended[0].Events()[0].Name)
	assert.Equal(t, "transfer users", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}
