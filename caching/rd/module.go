package rd

import (
	"context"

	"github.com/apex-wang/AUIKit/config"
	"github.com/apex-wang/AUIKit/rtm"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module replaces the proxy's in-memory change cache with a Redis one when
// caching.redis.enabled is set.
func Module() fx.Option {
	return fx.Module(
		"caching.redis",
		config.Section[Config]("caching.redis"),
		fx.Provide(NewCacheProvider),
	)
}

type CacheParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
}

// NewCacheProvider returns nil when Redis is disabled so the proxy keeps its
// default cache.
func NewCacheProvider(p CacheParams) (rtm.ChangeCache, error) {
	if !p.Config.Enabled {
		return nil, nil
	}
	client, err := NewClient(p.Config)
	if err != nil {
		return nil, err
	}
	log := p.Logger.Named("caching.redis")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			log.Info("redis change cache ready", zap.String("addr", client.Options().Addr), zap.Bool("in_memory", p.Config.InMemory))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewChangeCache(client, p.Config), nil
}

var _ Client = (*redis.Client)(nil)
