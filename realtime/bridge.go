package realtime

import (
	"context"
	"sync"

	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/apex-wang/AUIKit/rtm"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EventHandler consumes decoded events. *rtm.Proxy satisfies it.
type EventHandler interface {
	Handle(ctx context.Context, ev rtm.Event)
}

type subscription struct {
	filter string
	id     int
}

// Bridge feeds broker messages into an EventHandler and publishes local
// events back to the broker. It owns every subscription it makes and drops
// them all on Stop.
type Bridge struct {
	mu      sync.Mutex
	nextID  int
	stopped bool
	items   []subscription
	mws     []Middleware

	sub     usmqtt.Subscriber
	pub     usmqtt.Publisher
	handler EventHandler
	codec   Codec
	retain  bool
	log     *zap.Logger
}

type BridgeOption func(*Bridge)

func WithMiddleware(mws ...Middleware) BridgeOption {
	return func(b *Bridge) {
		b.mws = append(b.mws, mws...)
	}
}

// WithRetain publishes emitted events as retained messages so late
// subscribers receive the last state of each topic.
func WithRetain(retain bool) BridgeOption {
	return func(b *Bridge) {
		b.retain = retain
	}
}

func NewBridge(sub usmqtt.Subscriber, pub usmqtt.Publisher, handler EventHandler, codec Codec, log *zap.Logger, opts ...BridgeOption) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{
		nextID:  1,
		sub:     sub,
		pub:     pub,
		handler: handler,
		codec:   codec,
		log:     log.Named("realtime.bridge"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Start subscribes to every topic under the codec prefix.
func (b *Bridge) Start(context.Context) error {
	if err := b.Topic(b.codec.Filter(), b.relay); err != nil {
		return err
	}
	b.log.Info("relaying broker events", zap.String("filter", b.codec.Filter()))
	return nil
}

// Topic subscribes h to filter behind the bridge middlewares plus mws.
func (b *Bridge) Topic(filter string, h Handler, mws ...Middleware) error {
	if h == nil {
		return ErrNilTopicHandler
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrBridgeStopped
	}
	id := b.nextID
	b.nextID++
	wrapped := chain(h, append(append([]Middleware(nil), b.mws...), mws...))
	b.mu.Unlock()

	fn := inline(wrapped, func(err error, ctx Ctx) {
		b.log.Warn(
			"topic handler error",
			zap.Error(err),
			zap.String("topic", ctx.Topic()),
			zap.String("filter", ctx.Filter()),
			zap.String("client_id", ctx.ClientID()),
		)
	})
	if err := b.sub.Subscribe(filter, id, fn); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return multierr.Append(ErrBridgeStopped, b.sub.Unsubscribe(filter, id))
	}
	b.items = append(b.items, subscription{filter: filter, id: id})
	return nil
}

func (b *Bridge) Stop(context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	items := b.items
	b.items = nil
	b.mu.Unlock()

	var err error
	for _, item := range items {
		err = multierr.Append(err, b.sub.Unsubscribe(item.filter, item.id))
	}

	b.log.Debug("broker subscriptions cleaned", zap.Int("count", len(items)))
	return err
}

// Emit publishes ev to the broker. It reaches local subscribers through the
// bridge's own subscription, like any other publisher's event.
func (b *Bridge) Emit(_ context.Context, ev rtm.Event) error {
	topic, payload, err := b.codec.Encode(ev)
	if err != nil {
		return err
	}
	return b.pub.Publish(topic, payload, b.retain, usmqtt.QoS0)
}

func (b *Bridge) relay(ctx Ctx) error {
	ev, err := b.codec.Decode(ctx.Topic(), ctx.Payload())
	if err != nil {
		return err
	}
	b.handler.Handle(ctx, ev)
	return nil
}
