package songapi

import (
	"github.com/apex-wang/AUIKit/config"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"service.songapi",
		config.Section[Config]("songapi"),
		fx.Provide(New),
	)
}
