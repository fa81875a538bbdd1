package otel

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// NewTraceExporter returns nil when trace export is off.
func NewTraceExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, error) {
	if !config.TracesEnabled() {
		return nil, nil
	}
	otlpCfg := config.otlpFor(config.Traces.Endpoint)
	tlsCfg, err := otlpCfg.TLS.Load()
	if err != nil {
		return nil, err
	}

	if otlpCfg.HTTP() {
		endpoint, path := otlpCfg.EndpointForHTTP()
		options := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithTimeout(otlpCfg.Timeout),
		}
		if otlpCfg.gzip() {
			options = append(options, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlptracehttp.WithURLPath(path))
		}
		if len(otlpCfg.Headers) > 0 {
			options = append(options, otlptracehttp.WithHeaders(otlpCfg.Headers))
		}
		if otlpCfg.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlptracehttp.WithTLSClientConfig(tlsCfg))
		}
		return otlptracehttp.New(ctx, options...)
	}

	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(otlpCfg.EndpointForGRPC()),
		otlptracegrpc.WithTimeout(otlpCfg.Timeout),
	}
	if otlpCfg.gzip() {
		options = append(options, otlptracegrpc.WithCompressor("gzip"))
	}
	if len(otlpCfg.Headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(otlpCfg.Headers))
	}
	if otlpCfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlptracegrpc.New(ctx, options...)
}

// NewMetricExporter returns nil when metric export is off.
func NewMetricExporter(ctx context.Context, config Config) (sdkmetric.Exporter, error) {
	if !config.MetricsEnabled() {
		return nil, nil
	}
	otlpCfg := config.otlpFor(config.Metrics.Endpoint)
	tlsCfg, err := otlpCfg.TLS.Load()
	if err != nil {
		return nil, err
	}

	if otlpCfg.HTTP() {
		endpoint, path := otlpCfg.EndpointForHTTP()
		options := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithTimeout(otlpCfg.Timeout),
		}
		if otlpCfg.gzip() {
			options = append(options, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlpmetrichttp.WithURLPath(path))
		}
		if len(otlpCfg.Headers) > 0 {
			options = append(options, otlpmetrichttp.WithHeaders(otlpCfg.Headers))
		}
		if otlpCfg.Insecure {
			options = append(options, otlpmetrichttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlpmetrichttp.WithTLSClientConfig(tlsCfg))
		}
		return otlpmetrichttp.New(ctx, options...)
	}

	options := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(otlpCfg.EndpointForGRPC()),
		otlpmetricgrpc.WithTimeout(otlpCfg.Timeout),
	}
	if otlpCfg.gzip() {
		options = append(options, otlpmetricgrpc.WithCompressor("gzip"))
	}
	if len(otlpCfg.Headers) > 0 {
		options = append(options, otlpmetricgrpc.WithHeaders(otlpCfg.Headers))
	}
	if otlpCfg.Insecure {
		options = append(options, otlpmetricgrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlpmetricgrpc.New(ctx, options...)
}

// NewLogExporter returns nil when log export is off.
func NewLogExporter(ctx context.Context, config Config) (sdklog.Exporter, error) {
	if !config.LogsEnabled() {
		return nil, nil
	}
	otlpCfg := config.otlpFor(config.Logs.Endpoint)
	tlsCfg, err := otlpCfg.TLS.Load()
	if err != nil {
		return nil, err
	}

	if otlpCfg.HTTP() {
		endpoint, path := otlpCfg.EndpointForHTTP()
		options := []otlploghttp.Option{
			otlploghttp.WithEndpoint(endpoint),
			otlploghttp.WithTimeout(otlpCfg.Timeout),
		}
		if otlpCfg.gzip() {
			options = append(options, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlploghttp.WithURLPath(path))
		}
		if len(otlpCfg.Headers) > 0 {
			options = append(options, otlploghttp.WithHeaders(otlpCfg.Headers))
		}
		if otlpCfg.Insecure {
			options = append(options, otlploghttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlploghttp.WithTLSClientConfig(tlsCfg))
		}
		return otlploghttp.New(ctx, options...)
	}

	options := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(otlpCfg.EndpointForGRPC()),
		otlploggrpc.WithTimeout(otlpCfg.Timeout),
	}
	if otlpCfg.gzip() {
		options = append(options, otlploggrpc.WithCompressor("gzip"))
	}
	if len(otlpCfg.Headers) > 0 {
		options = append(options, otlploggrpc.WithHeaders(otlpCfg.Headers))
	}
	if otlpCfg.Insecure {
		options = append(options, otlploggrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlploggrpc.New(ctx, options...)
}
