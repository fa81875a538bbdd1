package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex-wang/AUIKit/build"
	"github.com/spf13/cobra"
)

// ConfigFlag is the persistent flag naming the config file.
const ConfigFlag = "config"

type Root struct {
	*cobra.Command
}

func New() *Root {
	root := &cobra.Command{
		Use:           build.Name,
		Short:         "AUIKit room relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP(ConfigFlag, "c", DefaultConfigFile, "config file (toml)")
	return &Root{Command: root}
}

// Start executes the command line and returns the command that ran.
func (r *Root) Start(ctx context.Context) (*cobra.Command, error) {
	return r.ExecuteContextC(ctx)
}

func (r *Root) Register(commands ...Commander) error {
	for _, command := range commands {
		if err := r.RegisterOne(command); err != nil {
			return err
		}
	}
	return nil
}

func (r *Root) RegisterOne(c Commander) error {
	if r == nil || r.Command == nil {
		return fmt.Errorf("root command is nil")
	}
	path, err := commandPath(c)
	if err != nil {
		return err
	}
	cmd := c.Command()
	parts := strings.Fields(path)
	if len(parts) == 0 {
		return fmt.Errorf("command path is empty")
	}
	cmd.Use = leafUseFromPath(cmd.Use, len(parts))
	if cmd.Use == "" {
		cmd.Use = parts[len(parts)-1]
	}
	parent := r.Command
	for _, part := range parts[:len(parts)-1] {
		parent = ensureSubCommand(parent, part)
	}
	parent.AddCommand(cmd)
	return nil
}

func ensureSubCommand(parent *cobra.Command, use string) *cobra.Command {
	name := strings.TrimSpace(use)
	if name == "" {
		return parent
	}
	for _, child := range parent.Commands() {
		if child.Name() == name {
			return child
		}
	}
	child := &cobra.Command{Use: name}
	parent.AddCommand(child)
	return child
}

func commandPath(c Commander) (string, error) {
	if c == nil {
		return "", fmt.Errorf("commander is nil")
	}
	cmd := c.Command()
	if cmd == nil {
		return "", fmt.Errorf("command is nil")
	}
	path := pathFromUse(cmd.Use)
	if path == "" {
		path = strings.TrimSpace(cmd.Name())
	}
	if path == "" {
		return "", fmt.Errorf("command path is empty")
	}
	return path, nil
}

func pathFromUse(use string) string {
	fields := strings.Fields(strings.TrimSpace(use))
	if len(fields) == 0 {
		return ""
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "[") || strings.HasPrefix(f, "<") {
			break
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func leafUseFromPath(use string, pathParts int) string {
	fields := strings.Fields(strings.TrimSpace(use))
	if len(fields) == 0 || pathParts <= 1 {
		return strings.TrimSpace(use)
	}
	idx := pathParts - 1
	if idx >= len(fields) {
		return ""
	}
	return strings.Join(fields[idx:], " ")
}
