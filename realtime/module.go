package realtime

import (
	"context"

	"github.com/apex-wang/AUIKit/config"
	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Module runs the broker and the bridge that feeds it into the proxy. The
// broker starts before the bridge subscribes and stops after it unsubscribes.
func Module() fx.Option {
	return fx.Module(
		"realtime",
		config.Section[Config]("realtime"),
		fx.Provide(
			NewBrokerProvider,
			NewCodecProvider,
			NewBridgeProvider,
		),
	)
}

type BrokerParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Proxy     *rtm.Proxy
	App       *fiber.App `optional:"true"`
}

func NewBrokerProvider(p BrokerParams) (usmqtt.Broker, error) {
	broker, err := NewBroker(p.Config, p.Logger, ConnectionNotifier(p.Proxy))
	if err != nil {
		return nil, err
	}
	if server, ok := broker.(*usmqtt.Server); ok {
		if err := attachListeners(server, p.Config, p.App); err != nil {
			return nil, err
		}
	}

	log := p.Logger.Named("realtime")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := broker.Start(ctx); err != nil {
				return err
			}
			log.Info("broker started", zap.String("mode", p.Config.Broker.Mode))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return broker.Stop(ctx)
		},
	})
	return broker, nil
}

func attachListeners(server *usmqtt.Server, cfg Config, app *fiber.App) error {
	var err error
	if cfg.TCPListener.Enabled {
		err = multierr.Append(err, server.ListenTCP(cfg.TCPListener.ID, cfg.TCPListener.Address))
	}
	if cfg.WebsocketListener.Enabled && app != nil {
		err = multierr.Append(err, server.Listen(NewWebsocket(app, cfg.WebsocketListener)))
	}
	return err
}

func NewCodecProvider(cfg Config) Codec {
	return NewCodec(cfg.Prefix)
}

type BridgeParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Broker    usmqtt.Broker
	Proxy     *rtm.Proxy
	Codec     Codec
	Tracers   trace.TracerProvider `optional:"true"`
}

// NewBridgeProvider wires the bridge with panic recovery, the handler timeout
// and, when a tracer provider is available, a span per delivery.
func NewBridgeProvider(p BridgeParams) *Bridge {
	mws := []Middleware{Recover(p.Logger)}
	if p.Tracers != nil {
		mws = append(mws, Trace(p.Tracers.Tracer("github.com/apex-wang/AUIKit/realtime")))
	}
	mws = append(mws, Timeout(p.Config.HandlerTimeout))

	b := NewBridge(
		p.Broker,
		p.Broker,
		p.Proxy,
		p.Codec,
		p.Logger,
		WithRetain(p.Config.Retain),
		WithMiddleware(mws...),
	)
	p.Lifecycle.Append(fx.Hook{
		OnStart: b.Start,
		OnStop:  b.Stop,
	})
	return b
}
