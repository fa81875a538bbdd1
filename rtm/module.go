package rtm

import (
	"errors"
	"fmt"

	"github.com/apex-wang/AUIKit/config"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrCacheUnavailable = errors.New("rtm: redis change cache requested but not provided")

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	// StreamChannelType names the channel type whose storage and presence
	// events reach subscribers.
	StreamChannelType string `mapstructure:"stream_channel_type" default:"stream" validate:"oneof=none message stream user"`
	Cache             string `mapstructure:"cache" default:"memory" validate:"oneof=memory redis"`
	Shards            int    `mapstructure:"shards" default:"32" validate:"gte=1,lte=4096"`
}

func Module() fx.Option {
	return fx.Module(
		"rtm",
		config.Section[Config]("rtm"),
		fx.Provide(NewProxyProvider),
	)
}

type ProxyParams struct {
	fx.In

	Config Config
	Logger *zap.Logger
	Cache  ChangeCache              `optional:"true"`
	Meters otelmetric.MeterProvider `optional:"true"`
}

// NewProxyProvider builds the process proxy. An injected cache is used only
// when rtm.cache selects it.
func NewProxyProvider(p ProxyParams) (*Proxy, error) {
	streamType, err := ParseChannelType(p.Config.StreamChannelType)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(p.Logger),
		WithStreamChannelType(streamType),
		WithShards(p.Config.Shards),
	}
	if p.Meters != nil {
		opts = append(opts, WithMeterProvider(p.Meters))
	}

	switch p.Config.Cache {
	case CacheRedis:
		if p.Cache == nil {
			return nil, ErrCacheUnavailable
		}
		opts = append(opts, WithCache(p.Cache))
	case CacheMemory, "":
	default:
		return nil, fmt.Errorf("rtm: unknown cache backend %q", p.Config.Cache)
	}
	return NewProxy(opts...), nil
}
