package web

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/apex-wang/AUIKit/build"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFiberApp(config Config) (*fiber.App, error) {
	limit, err := ParseBodyLimit(config.BodyLimit)
	if err != nil {
		return nil, fmt.Errorf("web: body_limit: %w", err)
	}
	return fiber.New(fiber.Config{
		AppName:         BuildAppName(config.Name),
		BodyLimit:       limit,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		IdleTimeout:     config.IdleTimeout,
		ErrorHandler:    ErrorHandler,
		StructValidator: NewFiberValidator(),
		Immutable:       true,
	}), nil
}

func BuildAppName(name string) string {
	if name == "" {
		name = build.Name
	}
	return fmt.Sprintf("%s (%s %s %s)", name, build.Version, build.Commit, build.BuildDate)
}

func ParseAddr(config Config) string {
	return fmt.Sprintf("%s:%d", config.Host, config.Port)
}

// ParseBodyLimit accepts human sizes such as 4MB or 512KiB.
func ParseBodyLimit(v string) (int, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return fiber.DefaultBodyLimit, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > uint64(math.MaxInt) {
		return 0, fmt.Errorf("body limit overflows int")
	}

	return int(n), nil
}

func RegisterFiberApp(lc fx.Lifecycle, app *fiber.App, logger *zap.Logger, config Config) {
	if !config.Listen {
		return
	}
	addr := ParseAddr(config)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
				if err != nil {
					logger.Error("failed to start fiber app", zap.Error(err))
				}
			}()
			logger.Info("http listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
