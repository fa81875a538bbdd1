package web

import (
	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

var accessLogFields = []string{"ip", "method", "url", "status", "latency", "error"}

// NewAccessLog writes one entry per request. Health probes are skipped.
func NewAccessLog(logger *zap.Logger) fiber.Handler {
	return fiberzap.New(fiberzap.Config{
		Logger: logger.Named("http"),
		Fields: accessLogFields,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
	})
}
