package otel

import (
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
)

// NewTracerProvider returns a no-op provider unless telemetry is enabled.
func NewTracerProvider(lc fx.Lifecycle, config Config, res *resource.Resource, exporter sdktrace.SpanExporter) trace.TracerProvider {
	if !config.Enabled {
		return tracenoop.NewTracerProvider()
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.Traces.SampleRatio))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return tp
}

// NewMeterProvider returns a no-op provider unless telemetry is enabled.
func NewMeterProvider(lc fx.Lifecycle, config Config, res *resource.Resource, exporter sdkmetric.Exporter) otelmetric.MeterProvider {
	if !config.Enabled {
		return metricnoop.NewMeterProvider()
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.Metrics.Interval)),
		))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	lc.Append(fx.Hook{OnStop: mp.Shutdown})
	return mp
}

// NewLoggerProvider returns nil when log export is off.
func NewLoggerProvider(lc fx.Lifecycle, res *resource.Resource, exporter sdklog.Exporter) *sdklog.LoggerProvider {
	if exporter == nil {
		return nil
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	lc.Append(fx.Hook{OnStop: lp.Shutdown})
	return lp
}
