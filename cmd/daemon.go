package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apex-wang/AUIKit/build"
	kservice "github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// DaemonController registers auikitd with the host service manager.
type DaemonController interface {
	Install(ctx context.Context) error
	Uninstall(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (string, error)
}

type DaemonCommand struct {
	newController func(configFile string) (DaemonController, error)
}

func NewDaemonCommand() *DaemonCommand {
	return &DaemonCommand{newController: NewSystemController}
}

func (d *DaemonCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "daemon",
		Short:         "Install and control auikitd as a system service",
		SilenceErrors: true,
	}
	cmd.AddCommand(
		d.action("install", "Register the service to run serve with the current config", DaemonController.Install),
		d.action("uninstall", "Stop and remove the service", DaemonController.Uninstall),
		d.action("start", "Start the installed service", DaemonController.Start),
		d.action("stop", "Stop the running service", DaemonController.Stop),
		d.action("restart", "Stop then start the service", func(c DaemonController, ctx context.Context) error {
			if err := c.Stop(ctx); err != nil {
				return err
			}
			return c.Start(ctx)
		}),
		&cobra.Command{
			Use:           "status",
			Short:         "Print the service state",
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := d.controller(cmd)
				if err != nil {
					return err
				}
				status, err := c.Status(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status)
				return err
			},
		},
	)
	return cmd
}

func (d *DaemonCommand) action(use, short string, fn func(DaemonController, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.controller(cmd)
			if err != nil {
				return err
			}
			if err := fn(c, cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", use)
			return err
		},
	}
}

func (d *DaemonCommand) controller(cmd *cobra.Command) (DaemonController, error) {
	configFile := DefaultConfigFile
	if f := cmd.Flag(ConfigFlag); f != nil && f.Value.String() != "" {
		configFile = f.Value.String()
	}
	return d.newController(configFile)
}

type daemonProgram struct{}

func (p *daemonProgram) Start(kservice.Service) error { return nil }
func (p *daemonProgram) Stop(kservice.Service) error  { return nil }

type systemController struct {
	service kservice.Service
}

// NewSystemController describes a service that runs "serve --config
// configFile" from the current executable.
func NewSystemController(configFile string) (DaemonController, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	if abs, err := filepath.Abs(configFile); err == nil {
		configFile = abs
	}

	options := kservice.KeyValue{"LogOutput": true}
	if runtime.GOOS == "darwin" {
		options["UserService"] = true
		options["RunAtLoad"] = true
	}

	svc, err := kservice.New(&daemonProgram{}, &kservice.Config{
		Name:             ServiceName(build.Name),
		DisplayName:      build.Name,
		Description:      "AUIKit room relay",
		Executable:       exe,
		Arguments:        []string{DefaultCommand, "--" + ConfigFlag, configFile},
		WorkingDirectory: filepath.Dir(configFile),
		Option:           options,
	})
	if err != nil {
		return nil, fmt.Errorf("create service config: %w", err)
	}
	return &systemController{service: svc}, nil
}

// ServiceName turns a display name into one every service manager accepts.
func ServiceName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if out := strings.Trim(b.String(), "-"); out != "" {
		return out
	}
	return "auikitd"
}

func (c *systemController) Install(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, installed, err := c.status(); err != nil || installed {
		return err
	}
	if err := c.service.Install(); err != nil {
		return fmt.Errorf("install service: %w", err)
	}
	return nil
}

func (c *systemController) Uninstall(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status, installed, err := c.status()
	if err != nil || !installed {
		return err
	}
	if status == kservice.StatusRunning {
		if err := c.Stop(ctx); err != nil {
			return err
		}
	}
	if err := c.service.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service: %w", err)
	}
	return nil
}

func (c *systemController) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status, installed, err := c.status()
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("start service: %w", kservice.ErrNotInstalled)
	}
	if status == kservice.StatusRunning {
		return nil
	}
	if err := c.service.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	return nil
}

func (c *systemController) Stop(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status, installed, err := c.status()
	if err != nil || !installed || status == kservice.StatusStopped {
		return err
	}
	if err := c.service.Stop(); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	return nil
}

func (c *systemController) Status(ctx context.Context) (string, error) {
	status, installed, err := c.status()
	switch {
	case err != nil:
		return "", err
	case !installed:
		return "not-installed", nil
	case status == kservice.StatusRunning:
		return "running", nil
	case status == kservice.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}

func (c *systemController) status() (kservice.Status, bool, error) {
	status, err := c.service.Status()
	if err == nil {
		return status, true, nil
	}
	if errors.Is(err, kservice.ErrNotInstalled) {
		return kservice.StatusUnknown, false, nil
	}
	return kservice.StatusUnknown, false, fmt.Errorf("service status: %w", err)
}
