package rtm

import (
	"context"

	"github.com/apex-wang/AUIKit/delegate"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Proxy fans raw messaging events out to typed subscribers. Dispatch runs on
// the caller's goroutine and never blocks on subscribers beyond their callbacks.
type Proxy struct {
	log         *zap.Logger
	cache       ChangeCache
	passthrough Passthrough
	streamType  ChannelType
	metrics     *proxyMetrics

	attributes  *Registry[AttributeSubscriber]
	messages    *Registry[MessageSubscriber]
	users       *Registry[UserSubscriber]
	connections *Registry[ConnectionSubscriber]
}

type Option func(*proxyOptions)

type proxyOptions struct {
	log         *zap.Logger
	cache       ChangeCache
	passthrough Passthrough
	streamType  ChannelType
	shards      int
	meters      otelmetric.MeterProvider
}

func WithLogger(log *zap.Logger) Option {
	return func(o *proxyOptions) {
		o.log = log
	}
}

// WithCache replaces the in-memory change cache.
func WithCache(cache ChangeCache) Option {
	return func(o *proxyOptions) {
		o.cache = cache
	}
}

// WithPassthrough forwards every incoming event to p before classification.
func WithPassthrough(p Passthrough) Option {
	return func(o *proxyOptions) {
		o.passthrough = p
	}
}

// WithStreamChannelType sets the channel type whose storage and presence
// events are relayed. Defaults to ChannelTypeStream.
func WithStreamChannelType(t ChannelType) Option {
	return func(o *proxyOptions) {
		o.streamType = t
	}
}

func WithShards(n int) Option {
	return func(o *proxyOptions) {
		o.shards = n
	}
}

// WithMeterProvider records event, item and subscription metrics on mp.
func WithMeterProvider(mp otelmetric.MeterProvider) Option {
	return func(o *proxyOptions) {
		o.meters = mp
	}
}

func NewProxy(opts ...Option) *Proxy {
	o := proxyOptions{
		streamType: ChannelTypeStream,
		shards:     DefaultShardCount,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.cache == nil {
		o.cache = NewMemoryCache(o.shards)
	}

	log := o.log.Named("rtm.proxy")
	p := &Proxy{
		log:         log,
		cache:       o.cache,
		passthrough: o.passthrough,
		streamType:  o.streamType,
		attributes:  NewRegistry[AttributeSubscriber](CapabilityAttribute.String(), o.shards, log),
		messages:    NewRegistry[MessageSubscriber](CapabilityMessage.String(), o.shards, log),
		users:       NewRegistry[UserSubscriber](CapabilityUser.String(), o.shards, log),
		connections: NewRegistry[ConnectionSubscriber](CapabilityConnection.String(), o.shards, log),
	}
	metrics, err := newProxyMetrics(o.meters, p)
	if err != nil {
		log.Warn("proxy metrics disabled", zap.Error(err))
		metrics, _ = newProxyMetrics(nil, p)
	}
	p.metrics = metrics
	return p
}

func (p *Proxy) SubscribeAttributes(channel, key string, ref *delegate.Ref[AttributeSubscriber]) {
	p.attributes.Subscribe(Topic{Channel: channel, Key: key}, ref)
}

func (p *Proxy) UnsubscribeAttributes(channel, key string, ref *delegate.Ref[AttributeSubscriber]) {
	p.attributes.Unsubscribe(Topic{Channel: channel, Key: key}, ref)
}

func (p *Proxy) SubscribeMessage(channel string, ref *delegate.Ref[MessageSubscriber]) {
	p.messages.Subscribe(Topic{Channel: channel}, ref)
}

func (p *Proxy) UnsubscribeMessage(channel string, ref *delegate.Ref[MessageSubscriber]) {
	p.messages.Unsubscribe(Topic{Channel: channel}, ref)
}

func (p *Proxy) SubscribeUser(channel string, ref *delegate.Ref[UserSubscriber]) {
	p.users.Subscribe(Topic{Channel: channel}, ref)
}

func (p *Proxy) UnsubscribeUser(channel string, ref *delegate.Ref[UserSubscriber]) {
	p.users.Unsubscribe(Topic{Channel: channel}, ref)
}

func (p *Proxy) SubscribeConnection(channel string, ref *delegate.Ref[ConnectionSubscriber]) {
	p.connections.Subscribe(Topic{Channel: channel}, ref)
}

func (p *Proxy) UnsubscribeConnection(channel string, ref *delegate.Ref[ConnectionSubscriber]) {
	p.connections.Unsubscribe(Topic{Channel: channel}, ref)
}

// CleanCache forgets every value observed for channel, so the next storage
// event for it is delivered in full.
func (p *Proxy) CleanCache(ctx context.Context, channel string) error {
	return p.cache.Clear(ctx, channel)
}

type Stats struct {
	Attributes  int `json:"attributes"`
	Messages    int `json:"messages"`
	Users       int `json:"users"`
	Connections int `json:"connections"`
	Topics      int `json:"topics"`
}

// Stats counts live registrations per capability.
func (p *Proxy) Stats() Stats {
	return Stats{
		Attributes:  p.attributes.Count(),
		Messages:    p.messages.Count(),
		Users:       p.users.Count(),
		Connections: p.connections.Count(),
		Topics:      p.attributes.Topics() + p.messages.Topics() + p.users.Topics() + p.connections.Topics(),
	}
}

// Handle dispatches one event. Failures are scoped to the item or event that
// caused them; they are logged and never returned to the transport.
func (p *Proxy) Handle(ctx context.Context, ev Event) {
	if ev == nil {
		return
	}
	p.metrics.event(ctx, ev.Kind())
	if p.passthrough != nil {
		p.passthrough.HandleEvent(ctx, ev)
	}

	switch e := ev.(type) {
	case TokenExpiryEvent:
		p.handleTokenExpiry(e)
	case *TokenExpiryEvent:
		p.handleTokenExpiry(*e)
	case ConnectionStateEvent:
		p.handleConnectionState(e)
	case *ConnectionStateEvent:
		p.handleConnectionState(*e)
	case StorageEvent:
		p.handleStorage(ctx, e)
	case *StorageEvent:
		p.handleStorage(ctx, *e)
	case PresenceEvent:
		p.handlePresence(e)
	case *PresenceEvent:
		p.handlePresence(*e)
	case MessageEvent:
		p.handleMessage(e)
	case *MessageEvent:
		p.handleMessage(*e)
	default:
		p.log.Warn("unhandled rtm event", zap.Stringer("kind", ev.Kind()), zap.String("channel", ev.Channel()))
	}
}

func (p *Proxy) handleTokenExpiry(e TokenExpiryEvent) {
	p.log.Info("token privilege will expire", zap.String("channel", e.ChannelName))
	p.fanOutConnection(e.ChannelName, func(s ConnectionSubscriber) {
		s.OnTokenWillExpire(e.ChannelName)
	})
}

func (p *Proxy) handleConnectionState(e ConnectionStateEvent) {
	p.log.Info(
		"connection state changed",
		zap.String("channel", e.ChannelName),
		zap.Stringer("state", e.State),
		zap.String("reason", e.Reason),
	)
	p.fanOutConnection(e.ChannelName, func(s ConnectionSubscriber) {
		s.OnConnectionStateChanged(e.ChannelName, e.State, e.Reason)
	})
}

func (p *Proxy) handleStorage(ctx context.Context, e StorageEvent) {
	if e.ChannelType != p.streamType {
		return
	}

	p.log.Debug(
		"storage event",
		zap.String("target", e.Target),
		zap.Stringer("channel_type", e.ChannelType),
		zap.Stringer("storage_type", e.StorageType),
		zap.Stringer("event_type", e.EventType),
		zap.Int("items", len(e.Items)),
	)

	for _, item := range e.Items {
		p.handleStorageItem(ctx, e.Target, item)
	}

	if len(e.Items) > 0 {
		return
	}
	p.connections.FanOut(Topic{Channel: e.Target}, func(s ConnectionSubscriber) {
		s.OnEmptyReceive(e.Target)
	})
}

func (p *Proxy) handleStorageItem(ctx context.Context, target string, item StorageItem) {
	changed, err := p.cache.CheckAndUpdate(ctx, target, item.Key, item.Value)
	if err != nil {
		// Fail open: the item is delivered even if it may be a duplicate.
		p.log.Error("change cache check failed", zap.String("target", target), zap.String("key", item.Key), zap.Error(err))
		changed = true
	}
	if !changed {
		p.metrics.item(ctx, p.metrics.deduplicated, item.Key)
		p.log.Debug("no changes", zap.String("target", target), zap.String("key", item.Key))
		return
	}

	value, err := ParseValue(item.Value)
	if err != nil {
		p.log.Warn(
			"parse item value failed",
			zap.String("target", target),
			zap.String("key", item.Key),
			zap.String("value", item.Value),
			zap.Error(err),
		)
		p.metrics.item(ctx, p.metrics.invalid, item.Key)
		return
	}

	p.metrics.item(ctx, p.metrics.delivered, item.Key)
	p.attributes.FanOut(Topic{Channel: target, Key: item.Key}, func(s AttributeSubscriber) {
		s.OnAttributeChanged(target, item.Key, value)
	})
}

func (p *Proxy) handlePresence(e PresenceEvent) {
	p.log.Debug(
		"presence event",
		zap.String("channel", e.ChannelName),
		zap.Stringer("type", e.Type),
		zap.Stringer("channel_type", e.ChannelType),
		zap.Int("states", len(e.States)),
	)
	if e.ChannelType != p.streamType {
		return
	}

	topic := Topic{Channel: e.ChannelName}
	userID := e.Publisher
	attrs := copyStates(e.States)

	switch e.Type {
	case PresenceRemoteJoin:
		if len(attrs) == 0 {
			p.log.Warn("join user fail, empty states", zap.String("channel", e.ChannelName), zap.String("user_id", userID))
			return
		}
		p.users.FanOut(topic, func(s UserSubscriber) {
			s.OnUserJoined(e.ChannelName, userID, attrs)
		})
	case PresenceRemoteLeave, PresenceRemoteTimeout:
		p.users.FanOut(topic, func(s UserSubscriber) {
			s.OnUserLeft(e.ChannelName, userID, attrs)
		})
	case PresenceRemoteStateChanged:
		if len(attrs) == 0 {
			p.log.Warn("update user fail, empty states", zap.String("channel", e.ChannelName), zap.String("user_id", userID))
			return
		}
		p.users.FanOut(topic, func(s UserSubscriber) {
			s.OnUserUpdated(e.ChannelName, userID, attrs)
		})
	case PresenceSnapshot:
		users := make([]UserState, 0, len(e.Snapshot))
		for _, u := range e.Snapshot {
			users = append(users, UserState{UserID: u.UserID, States: copyStates(u.States)})
		}
		p.users.FanOut(topic, func(s UserSubscriber) {
			s.OnUserSnapshot(e.ChannelName, userID, users)
		})
	default:
		p.log.Debug("presence type ignored", zap.String("channel", e.ChannelName), zap.Stringer("type", e.Type))
	}
}

func (p *Proxy) handleMessage(e MessageEvent) {
	if e.MessageType != MessageTypeString {
		p.log.Warn(
			"recv unknown type message",
			zap.String("channel", e.ChannelName),
			zap.Stringer("message_type", e.MessageType),
			zap.Error(ErrNotText),
		)
		return
	}

	text := string(e.Payload)
	p.log.Debug("message event", zap.String("channel", e.ChannelName), zap.Int("size", len(text)))
	p.messages.FanOut(Topic{Channel: e.ChannelName}, func(s MessageSubscriber) {
		s.OnMessageReceived(e.ChannelName, text)
	})
}

func (p *Proxy) fanOutConnection(channel string, fn func(ConnectionSubscriber)) {
	if channel == "" {
		p.connections.FanOutAll(fn)
		return
	}
	p.connections.FanOut(Topic{Channel: channel}, fn)
}

func copyStates(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
