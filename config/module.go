package config

import (
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module provides the shared *viper.Viper.
func Module(opts ...Option) fx.Option {
	return fx.Module(
		"config",
		fx.Provide(func() (*viper.Viper, error) {
			return New(opts...)
		}),
	)
}

// Section provides T decoded from key.
func Section[T any](key string) fx.Option {
	return fx.Provide(func(v *viper.Viper) (T, error) {
		return Decode[T](v, key)
	})
}
