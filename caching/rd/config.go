package rd

import (
	"time"

	"github.com/apex-wang/AUIKit/tlsconfig"
	redis "github.com/redis/go-redis/v9"
)

type Config struct {
	Enabled         bool          `mapstructure:"enabled" default:"false"`
	InMemory        bool          `mapstructure:"in_memory" default:"false"`
	Network         string        `mapstructure:"network" default:"tcp"`
	Addr            string        `mapstructure:"addr" default:"127.0.0.1:6379"`
	Protocol        int           `mapstructure:"protocol" default:"3"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db" default:"0"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"3s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"3s"`
	PoolSize        int           `mapstructure:"pool_size" default:"10"`
	MinIdleConns    int           `mapstructure:"min_idle_conns" default:"0"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout" default:"4s"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" default:"30m"`

	// TLS is used for the connection when any of its fields is set.
	TLS tlsconfig.Config `mapstructure:"tls"`

	// Prefix namespaces change cache hashes: <prefix>:<target>.
	Prefix string `mapstructure:"prefix" default:"auikit:cache"`
	// TTL expires a target's hash after its last write. Zero keeps it forever.
	TTL time.Duration `mapstructure:"ttl" default:"0s"`
}

func (c Config) Options() (*redis.Options, error) {
	tlsCfg, err := c.TLS.Load()
	if err != nil {
		return nil, err
	}
	return &redis.Options{
		Network:         c.Network,
		Addr:            c.Addr,
		Protocol:        c.Protocol,
		Username:        c.Username,
		Password:        c.Password,
		DB:              c.DB,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		PoolTimeout:     c.PoolTimeout,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		TLSConfig:       tlsCfg,
	}, nil
}
