package log

import (
	"github.com/apex-wang/AUIKit/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ModuleName = "auikit/log"

func Module() fx.Option {
	return fx.Module(
		ModuleName,
		config.Section[Config]("log"),
		fx.Provide(NewAtomicLevel, NewZapLogger),
		fx.WithLogger(NewEventLogger),
		fx.Invoke(WatchLevel),
	)
}

// WatchLevel applies log.level edits in config.toml without a restart.
func WatchLevel(cfg Config, v *viper.Viper, level zap.AtomicLevel, logger *zap.Logger) {
	if !cfg.Watch {
		return
	}
	config.Watch(v, logger, config.DefaultDebounce, func(v *viper.Viper) {
		next := ParseLevel(v.GetString("log.level"))
		level.SetLevel(next)
		logger.Info("log level changed", zap.Stringer("level", next))
	}, "log.level")
}
