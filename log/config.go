package log

type Config struct {
	Level string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error fatal"`
	// Format is console or json. Empty picks console in development builds.
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	// DropFields removes noisy fields (e.g. payload, stack) before encoding.
	DropFields []string `mapstructure:"drop_fields"`
	// Watch re-reads log.level when config.toml changes.
	Watch bool `mapstructure:"watch" default:"false"`
}
