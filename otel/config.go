package otel

import (
	"net/url"
	"strings"
	"time"

	"github.com/apex-wang/AUIKit/tlsconfig"
)

const (
	ExporterOTLP = "otlp"
	ExporterNone = "none"
)

type Config struct {
	Enabled       bool              `mapstructure:"enabled" default:"false"`
	ServiceName   string            `mapstructure:"service_name" default:"auikitd"`
	ResourceAttrs map[string]string `mapstructure:"resource_attributes"`
	OTLP          OTLPConfig        `mapstructure:"otlp"`
	Traces        TracesConfig      `mapstructure:"traces"`
	Logs          SignalConfig      `mapstructure:"logs"`
	Metrics       MetricsConfig     `mapstructure:"metrics"`
}

type OTLPConfig struct {
	Endpoint    string            `mapstructure:"endpoint" default:"127.0.0.1:4317"`
	Protocol    string            `mapstructure:"protocol" default:"grpc" validate:"oneof=grpc http http/protobuf"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout" default:"10s"`
	Compression string            `mapstructure:"compression" default:"gzip" validate:"oneof=gzip none"`
	Insecure    bool              `mapstructure:"insecure"`
	TLS         tlsconfig.Config  `mapstructure:"tls"`
}

// SignalConfig selects the exporter of one signal. Endpoint overrides
// otlp.endpoint for that signal only.
type SignalConfig struct {
	Exporter string `mapstructure:"exporter" default:"none" validate:"oneof=otlp none"`
	Endpoint string `mapstructure:"endpoint"`
}

type TracesConfig struct {
	Exporter    string  `mapstructure:"exporter" default:"none" validate:"oneof=otlp none"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" default:"1" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter" default:"none" validate:"oneof=otlp none"`
	Endpoint string        `mapstructure:"endpoint"`
	Interval time.Duration `mapstructure:"interval" default:"10s"`
}

func (c Config) exports(exporter string) bool {
	return c.Enabled && strings.EqualFold(strings.TrimSpace(exporter), ExporterOTLP)
}

func (c Config) TracesEnabled() bool  { return c.exports(c.Traces.Exporter) }
func (c Config) LogsEnabled() bool    { return c.exports(c.Logs.Exporter) }
func (c Config) MetricsEnabled() bool { return c.exports(c.Metrics.Exporter) }

func (c Config) otlpFor(endpoint string) OTLPConfig {
	out := c.OTLP
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		out.Endpoint = endpoint
	}
	return out
}

func (c OTLPConfig) HTTP() bool {
	return strings.HasPrefix(strings.ToLower(c.Protocol), "http")
}

// EndpointForGRPC strips any scheme, leaving host:port.
func (c OTLPConfig) EndpointForGRPC() string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if !strings.Contains(endpoint, "://") {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// EndpointForHTTP splits the endpoint into host:port and an optional URL path.
func (c OTLPConfig) EndpointForHTTP() (string, string) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return "", ""
	}
	if !strings.Contains(endpoint, "://") {
		if !strings.Contains(endpoint, "/") {
			return endpoint, ""
		}
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, ""
	}
	return u.Host, strings.TrimSpace(u.Path)
}

func (c OTLPConfig) gzip() bool {
	return strings.EqualFold(strings.TrimSpace(c.Compression), "gzip")
}
