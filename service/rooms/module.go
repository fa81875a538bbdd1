package rooms

import (
	"context"

	"github.com/apex-wang/AUIKit/config"
	"github.com/apex-wang/AUIKit/realtime"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/songapi"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"service.rooms",
		config.Section[Config]("rooms"),
		fx.Provide(NewManagerProvider),
	)
}

type ManagerParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
	Room      *roomctx.Context
	Songs     *songapi.Client
	Proxy     *rtm.Proxy
	Bridge    *realtime.Bridge
	Logger    *zap.Logger
}

func NewManagerProvider(p ManagerParams) *Manager {
	m := NewManager(p.Config, p.Room, p.Songs, p.Proxy, p.Bridge, p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m
}
