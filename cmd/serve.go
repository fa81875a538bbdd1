package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCommand keeps the app running. The servers themselves are started by
// the lifecycle before the command line executes.
type ServeCommand struct {
	log *zap.Logger
}

func NewServeCommand(log *zap.Logger) *ServeCommand {
	return &ServeCommand{log: log}
}

func (s *ServeCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Run the relay, the broker and the HTTP API",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.log.Info("serving; press Ctrl+C to stop")
			return nil
		},
	}
}
