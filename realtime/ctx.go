package realtime

import (
	"context"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Ctx is the per-message context handed to topic handlers.
type Ctx interface {
	context.Context

	ClientID() string
	Filter() string
	Topic() string
	Payload() []byte
	Context() context.Context
	SetContext(ctx context.Context)
}

type Handler func(Ctx) error

type Middleware func(next Handler) Handler

type topicCtx struct {
	client *mqtt.Client
	sub    packets.Subscription
	packet packets.Packet
	ctx    context.Context
}

func (c *topicCtx) ClientID() string {
	if c.client == nil {
		return ""
	}
	return c.client.ID
}

func (c *topicCtx) Filter() string                 { return c.sub.Filter }
func (c *topicCtx) Topic() string                  { return c.packet.TopicName }
func (c *topicCtx) Payload() []byte                { return c.packet.Payload }
func (c *topicCtx) SetContext(ctx context.Context) { c.ctx = ctx }

func (c *topicCtx) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *topicCtx) Deadline() (time.Time, bool) { return c.Context().Deadline() }
func (c *topicCtx) Done() <-chan struct{}       { return c.Context().Done() }
func (c *topicCtx) Err() error                  { return c.Context().Err() }
func (c *topicCtx) Value(key any) any           { return c.Context().Value(key) }

func chain(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func inline(h Handler, onError func(error, Ctx)) mqtt.InlineSubFn {
	return func(cl *mqtt.Client, sub packets.Subscription, pk packets.Packet) {
		ctx := &topicCtx{client: cl, sub: sub, packet: pk, ctx: context.Background()}
		if err := h(ctx); err != nil && onError != nil {
			onError(err, ctx)
		}
	}
}
