package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const CommandersGroupName = "auikit/cmd/commanders"

// AsCommand provides a constructor's result as a Commander.
func AsCommand(ctor any) any {
	return fx.Annotate(ctor, fx.As(new(Commander)), fx.ResultTags(`group:"auikit/cmd/commanders"`))
}

type registerParams struct {
	fx.In

	Root     *Root
	Commands []Commander `group:"auikit/cmd/commanders"`
}

// Module wires the root command and registers every Commander. Place it after
// the other modules: the command line runs once everything else has started.
func Module(opts ...fx.Option) fx.Option {
	return fx.Module(
		"cmd",
		fx.Provide(New),
		fx.Options(opts...),
		fx.Invoke(RegisterCommands, Start),
	)
}

// RegisterCommands attaches every Commander to the root. Running the root
// without a subcommand behaves like serve.
func RegisterCommands(params registerParams) error {
	if err := params.Root.Register(params.Commands...); err != nil {
		return err
	}
	root := params.Root.Command
	if root.RunE == nil && root.Run == nil {
		if serve, _, err := root.Find([]string{DefaultCommand}); err == nil && serve != root {
			root.RunE = serve.RunE
		}
	}
	return nil
}

// Start executes the command line after the app has started. Only serve keeps
// the app running; any other command shuts it down when it returns, with exit
// code 1 on failure.
func Start(lc fx.Lifecycle, root *Root, shutdowner fx.Shutdowner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				executed, err := root.Start(context.Background())
				if err != nil {
					log.Error("command failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				if !Serving(root, executed) {
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
	})
}

// Serving reports whether executed leaves the app running.
func Serving(root *Root, executed *cobra.Command) bool {
	if executed == nil {
		return false
	}
	if help, _ := executed.Flags().GetBool("help"); help {
		return false
	}
	return executed == root.Command || executed.Name() == DefaultCommand
}

// UseCommands provides the built-in commands.
func UseCommands() fx.Option {
	return fx.Provide(
		AsCommand(NewServeCommand),
		AsCommand(NewEmitCommand),
		AsCommand(NewVersionCommand),
		AsCommand(NewHealthcheckCommand),
		AsCommand(NewDaemonCommand),
	)
}
