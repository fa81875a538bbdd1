// Package auikit assembles the auikitd daemon: the rtm proxy, the realtime
// transport feeding it, the per-room services and the HTTP API.
package auikit

import (
	"github.com/apex-wang/AUIKit/caching/rd"
	"github.com/apex-wang/AUIKit/cmd"
	"github.com/apex-wang/AUIKit/config"
	"github.com/apex-wang/AUIKit/log"
	"github.com/apex-wang/AUIKit/otel"
	"github.com/apex-wang/AUIKit/realtime"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/rooms"
	"github.com/apex-wang/AUIKit/service/songapi"
	"github.com/apex-wang/AUIKit/web"
	"go.uber.org/fx"
)

// Module is everything serve runs.
func Module() fx.Option {
	return fx.Options(
		otel.Module(),
		rtm.Module(),
		rd.Module(),
		realtime.Module(),
		roomctx.Module(),
		songapi.Module(),
		rooms.Module(),
		web.Module(),
	)
}

type App struct {
	args   []string
	config []config.Option
	opts   []fx.Option
}

// New builds the daemon for the given command line (without the program name).
// Extra options are added next to the default modules.
func New(args []string, opts ...fx.Option) *App {
	return &App{args: args, opts: opts}
}

// WithConfig adds config options after the --config file selection.
func (a *App) WithConfig(opts ...config.Option) *App {
	a.config = append(a.config, opts...)
	return a
}

func (a *App) Build() fx.Option {
	cfg := append([]config.Option{config.WithFile(cmd.ConfigFile(a.args))}, a.config...)
	return fx.Options(
		config.Module(cfg...),
		log.Module(),
		cmd.Serve(a.args, Module()),
		fx.Options(a.opts...),
		cmd.Module(
			cmd.UseCommands(),
			fx.Invoke(func(root *cmd.Root) {
				root.SetArgs(a.args)
			}),
		),
	)
}

// Run blocks until the command finishes or, for serve, a stop signal arrives.
func (a *App) Run() {
	fx.New(a.Build()).Run()
}
