package otel

import (
	"context"

	"github.com/apex-wang/AUIKit/config"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

const ModuleName = "auikit/otel"

// Module provides the tracer and meter providers picked up by the relay and
// the bridge. The logger decoration is applied app-wide.
func Module() fx.Option {
	return fx.Options(
		fx.Module(
			ModuleName,
			fx.Provide(
				NewConfig,
				func(config Config) (*resource.Resource, error) {
					return NewResource(context.Background(), config)
				},
				func(config Config) (sdktrace.SpanExporter, error) {
					return NewTraceExporter(context.Background(), config)
				},
				func(config Config) (sdkmetric.Exporter, error) {
					return NewMetricExporter(context.Background(), config)
				},
				func(config Config) (sdklog.Exporter, error) {
					return NewLogExporter(context.Background(), config)
				},
				NewTracerProvider,
				NewMeterProvider,
				NewLoggerProvider,
			),
		),
		fx.Decorate(TeeLogger),
	)
}

// NewConfig decodes the otel section after folding in the OTEL_* environment.
func NewConfig(v *viper.Viper) (Config, error) {
	applyEnv(v)
	return config.Decode[Config](v, "otel")
}
