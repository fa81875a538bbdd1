package otel

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// applyEnv maps the standard OTEL_* variables onto the otel section, so a
// collector configured for other services configures auikitd too.
func applyEnv(v *viper.Viper) {
	applyStringEnv(v, "otel.service_name", "OTEL_SERVICE_NAME")
	applyBoolEnv(v, "otel.enabled", "OTEL_ENABLED")
	applyStringEnv(v, "otel.traces.exporter", "OTEL_TRACES_EXPORTER")
	applyStringEnv(v, "otel.logs.exporter", "OTEL_LOGS_EXPORTER")
	applyStringEnv(v, "otel.metrics.exporter", "OTEL_METRICS_EXPORTER")
	applyHeadersEnv(v, "otel.resource_attributes", "OTEL_RESOURCE_ATTRIBUTES")

	applyStringEnv(v, "otel.otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	applyStringEnv(v, "otel.otlp.protocol", "OTEL_EXPORTER_OTLP_PROTOCOL")
	applyStringEnv(v, "otel.otlp.compression", "OTEL_EXPORTER_OTLP_COMPRESSION")
	applyTimeoutEnv(v, "otel.otlp.timeout", "OTEL_EXPORTER_OTLP_TIMEOUT")
	applyHeadersEnv(v, "otel.otlp.headers", "OTEL_EXPORTER_OTLP_HEADERS")
	applyBoolEnv(v, "otel.otlp.insecure", "OTEL_EXPORTER_OTLP_INSECURE")
	applyStringEnv(v, "otel.otlp.tls.ca_file", "OTEL_EXPORTER_OTLP_CERTIFICATE")
	applyStringEnv(v, "otel.otlp.tls.cert_file", "OTEL_EXPORTER_OTLP_CLIENT_CERTIFICATE")
	applyStringEnv(v, "otel.otlp.tls.key_file", "OTEL_EXPORTER_OTLP_CLIENT_KEY")

	applyStringEnv(v, "otel.traces.endpoint", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	applyStringEnv(v, "otel.logs.endpoint", "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")
	applyStringEnv(v, "otel.metrics.endpoint", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	applyFloatEnv(v, "otel.traces.sample_ratio", "OTEL_TRACES_SAMPLER_ARG")
}

func applyStringEnv(v *viper.Viper, key string, env string) {
	if val, ok := os.LookupEnv(env); ok {
		v.Set(key, strings.TrimSpace(val))
	}
}

func applyTimeoutEnv(v *viper.Viper, key string, env string) {
	if val, ok := os.LookupEnv(env); ok {
		if d, ok := ParseTimeout(val); ok {
			v.Set(key, d)
		}
	}
}

func applyFloatEnv(v *viper.Viper, key string, env string) {
	if val, ok := os.LookupEnv(env); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			v.Set(key, f)
		}
	}
}

func applyBoolEnv(v *viper.Viper, key string, env string) {
	if val, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			v.Set(key, b)
		}
	}
}

func applyHeadersEnv(v *viper.Viper, key string, env string) {
	if val, ok := os.LookupEnv(env); ok {
		if headers := ParseHeaders(val); len(headers) > 0 {
			v.Set(key, headers)
		}
	}
}

// ParseTimeout accepts plain milliseconds, as OTEL_EXPORTER_OTLP_TIMEOUT
// specifies, or a Go duration.
func ParseTimeout(value string) (time.Duration, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return time.Duration(n) * time.Millisecond, true
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, false
	}
	return d, true
}

// ParseHeaders reads k1=v1,k2=v2 lists. Malformed or empty pairs are skipped.
func ParseHeaders(value string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
