package web

import (
	"github.com/apex-wang/AUIKit/config"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"web",
		config.Section[Config]("web"),
		fx.Provide(
			NewFiberApp,
			AsHandler(NewHealthHandler),
			AsHandler(NewDebugHandler),
			AsHandler(NewRoomsHandler),
		),
		fx.Invoke(SetupAccessLog, SetupHandlers, RegisterFiberApp),
	)
}

// SetupAccessLog runs before SetupHandlers so the middleware wraps every route.
func SetupAccessLog(cfg Config, app *fiber.App, logger *zap.Logger) {
	if !cfg.AccessLog {
		return
	}
	app.Use(NewAccessLog(logger))
}
