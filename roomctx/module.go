package roomctx

import (
	"github.com/apex-wang/AUIKit/config"
	"go.uber.org/fx"
)

type Config struct {
	Common   CommonConfig `mapstructure:"common"`
	SeatType string       `mapstructure:"seat_type" default:"eight" validate:"oneof=one six eight nine"`
}

func Module() fx.Option {
	return fx.Module(
		"roomctx",
		config.Section[Config]("room"),
		fx.Provide(NewFromConfig),
	)
}

func NewFromConfig(cfg Config) (*Context, error) {
	c := New(cfg.Common)
	if cfg.SeatType != "" {
		layout, err := ParseSeatLayout(cfg.SeatType)
		if err != nil {
			return nil, err
		}
		c.SetSeatLayout(layout)
	}
	return c, nil
}
