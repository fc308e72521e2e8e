package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// Module provides the configured metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewTracerProvider),
	fx.Provide(NewTracer),
	fx.Provide(NewMetricRecorder),
)

func serviceResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "tablesync"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// NewTracerProvider returns an SDK tracer provider exporting over OTLP/HTTP when tracing
// is enabled, and a no-op provider otherwise. The SDK provider is flushed on stop.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.TracingConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}

	var opts []otlptracehttp.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(cfg.ServiceName)),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Flushing trace exporter.")
			return tp.Shutdown(ctx)
		},
	})
	logger.Infof("Tracing enabled (endpoint: %s).", cfg.OTLPEndpoint)
	return tp, nil
}

// NewTracer returns the OpenTelemetry tracer when tracing is enabled.
func NewTracer(tp trace.TracerProvider, cfg *config.TracingConfig) metrics.Tracer {
	if !cfg.Enabled {
		return metrics.NewNoOpTracer()
	}
	return NewOpenTelemetryTracer(tp)
}

// NewMetricRecorder returns the recorder selected by metrics.recorder.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.MetricsConfig, tracing *config.TracingConfig) (metrics.MetricRecorder, error) {
	switch cfg.Recorder {
	case config.MetricsRecorderPrometheus:
		rec := NewPrometheusRecorder()
		if cfg.TextfilePath != "" {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					logger.Infof("Writing metrics to %s.", cfg.TextfilePath)
					return rec.WriteTextfile(cfg.TextfilePath)
				},
			})
		}
		return rec, nil

	case config.MetricsRecorderOtel:
		var opts []otlpmetrichttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if tracing.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(context.Background(), opts...)
		if err != nil {
			return nil, err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
			sdkmetric.WithResource(serviceResource(tracing.ServiceName)),
		)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return mp.Shutdown(ctx)
			},
		})
		return NewOpenTelemetryRecorder(mp)

	default:
		return metrics.NewNoOpMetricRecorder(), nil
	}
}
