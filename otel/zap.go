package otel

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TeeLogger copies every record written to log into the OTLP log pipeline
// when one is configured. SDK errors are reported through log.
func TeeLogger(config Config, log *zap.Logger, lp *sdklog.LoggerProvider) *zap.Logger {
	if !config.Enabled {
		return log
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Error("otel error", zap.Error(err))
	}))
	if lp == nil {
		return log
	}
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, otelzap.NewCore(config.ServiceName, otelzap.WithLoggerProvider(lp)))
	}))
}
