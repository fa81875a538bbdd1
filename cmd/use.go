package cmd

import (
	"strings"

	"go.uber.org/fx"
)

const (
	DefaultCommand    = "serve"
	DefaultConfigFile = "config.toml"
)

// Use includes opts only when the command selected by args is name. Selection
// takes the first positional argument and defaults to serve.
func Use(args []string, name string, opts ...fx.Option) fx.Option {
	if SelectedCommand(args) != strings.TrimSpace(name) {
		return fx.Options()
	}
	return fx.Options(opts...)
}

// Serve is an alias for Use(args, "serve", ...).
func Serve(args []string, opts ...fx.Option) fx.Option {
	return Use(args, DefaultCommand, opts...)
}

func SelectedCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if arg == "" {
			continue
		}
		if isConfigFlag(arg) {
			i++
			continue
		}
		if arg == "-h" || arg == "--help" {
			return "help"
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return DefaultCommand
}

// ConfigFile returns the value of --config (or -c) in args.
func ConfigFile(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if isConfigFlag(arg) {
			if i+1 < len(args) {
				return args[i+1]
			}
			break
		}
		for _, prefix := range []string{"--" + ConfigFlag + "=", "-c="} {
			if v, ok := strings.CutPrefix(arg, prefix); ok {
				return v
			}
		}
	}
	return DefaultConfigFile
}

func isConfigFlag(arg string) bool {
	return arg == "--"+ConfigFlag || arg == "-c"
}
