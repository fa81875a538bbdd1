package web

import "time"

type Config struct {
	Name         string        `mapstructure:"name" default:"auikitd"`
	Host         string        `mapstructure:"host" default:"0.0.0.0"`
	Port         int           `mapstructure:"port" default:"8080" validate:"gte=0,lte=65535"`
	BodyLimit    string        `mapstructure:"body_limit" default:"4MB"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"5s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"5s"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" default:"30s"`
	AccessLog    bool          `mapstructure:"access_log" default:"true"`
	// Listen is off in tests that drive the app through App.Test.
	Listen bool `mapstructure:"listen" default:"true"`
}
