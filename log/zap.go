package log

import (
	"github.com/apex-wang/AUIKit/build"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the process logger. Its level is exposed as level so it
// can be changed at runtime.
func NewZapLogger(cfg Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapConfig zap.Config
	if build.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	switch cfg.Format {
	case "json":
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		zapConfig.Encoding = "console"
	}

	level.SetLevel(ParseLevel(cfg.Level))
	zapConfig.Level = level

	var opts []zap.Option
	if len(cfg.DropFields) > 0 {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return FilterFieldsCore(core, cfg.DropFields...)
		}))
	}
	logger, err := zapConfig.Build(opts...)
	if err != nil {
		return nil, err
	}
	return logger.Named(build.Name), nil
}

func NewAtomicLevel() zap.AtomicLevel {
	return zap.NewAtomicLevel()
}

// ParseLevel maps a config level name to a zap level. Unknown names fall back
// to debug in development builds and info otherwise.
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	}
	if build.IsDevelopment() {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func NewEventLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}
