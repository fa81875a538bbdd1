// Package ditest runs fx modules inside tests.
package ditest

import (
	"testing"

	"github.com/apex-wang/AUIKit/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// App wraps fxtest.App with start/stop helpers that fail the test.
type App struct {
	app *fxtest.App
}

// New builds a test app from opts. fx's own event log is silenced.
func New(t testing.TB, opts ...fx.Option) *App {
	t.Helper()
	opts = append([]fx.Option{fx.NopLogger}, opts...)
	return &App{app: fxtest.New(t, opts...)}
}

// Config supplies a *viper.Viper holding only the given key/value pairs, so
// module sections decode from their defaults plus these overrides.
func Config(kv map[string]any) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		opts := []config.Option{config.WithFile("")}
		for k, v := range kv {
			opts = append(opts, config.WithOverride(k, v))
		}
		return config.New(opts...)
	})
}

// Logger supplies a no-op *zap.Logger.
func Logger() fx.Option {
	return fx.Supply(zap.NewNop())
}

// RequireStart starts the app and fails the test on error.
func (a *App) RequireStart() *App {
	a.app.RequireStart()
	return a
}

// RequireStop stops the app and fails the test on error.
func (a *App) RequireStop() *App {
	a.app.RequireStop()
	return a
}

// Fx exposes the underlying fxtest.App.
func (a *App) Fx() *fxtest.App {
	return a.app
}
