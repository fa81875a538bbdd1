package rtm_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type attrCall struct {
	channel string
	key     string
	value   any
}

type attrRecorder struct {
	mu     sync.Mutex
	calls  []attrCall
	onCall func(call attrCall)
}

func (r *attrRecorder) OnAttributeChanged(channel, key string, value any) {
	call := attrCall{channel: channel, key: key, value: value}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.onCall != nil {
		r.onCall(call)
	}
}

func (r *attrRecorder) Calls() []attrCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]attrCall(nil), r.calls...)
}

type userRecorder struct {
	snapshots [][]rtm.UserState
	joined    []string
	left      []string
	updated   []string
}

func (r *userRecorder) OnUserSnapshot(_ string, _ string, users []rtm.UserState) {
	r.snapshots = append(r.snapshots, users)
}

func (r *userRecorder) OnUserJoined(_ string, userID string, _ map[string]string) {
	r.joined = append(r.joined, userID)
}

func (r *userRecorder) OnUserLeft(_ string, userID string, _ map[string]string) {
	r.left = append(r.left, userID)
}

func (r *userRecorder) OnUserUpdated(_ string, userID string, _ map[string]string) {
	r.updated = append(r.updated, userID)
}

func (r *userRecorder) total() int {
	return len(r.snapshots) + len(r.joined) + len(r.left) + len(r.updated)
}

type messageRecorder struct {
	texts []string
}

func (r *messageRecorder) OnMessageReceived(_ string, text string) {
	r.texts = append(r.texts, text)
}

type connRecorder struct {
	states  []rtm.ConnectionState
	expired []string
	empty   []string
}

func (r *connRecorder) OnConnectionStateChanged(_ string, state rtm.ConnectionState, _ string) {
	r.states = append(r.states, state)
}

func (r *connRecorder) OnTokenWillExpire(channel string) {
	r.expired = append(r.expired, channel)
}

func (r *connRecorder) OnEmptyReceive(channel string) {
	r.empty = append(r.empty, channel)
}

func attrRef(r *attrRecorder) *delegate.Ref[rtm.AttributeSubscriber] {
	return delegate.Weak[rtm.AttributeSubscriber](r)
}

func storage(target string, items ...rtm.StorageItem) rtm.StorageEvent {
	return rtm.StorageEvent{
		Target:      target,
		ChannelType: rtm.ChannelTypeStream,
		StorageType: rtm.StorageTypeChannel,
		EventType:   rtm.StorageEventUpdate,
		Items:       items,
	}
}

func TestProxyScenarioDedupSongList(t *testing.T) {
	ctx := context.Background()
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))

	ev := storage("room1", rtm.StorageItem{Key: "song", Value: `[{"songCode":"1"}]`})
	proxy.Handle(ctx, ev)

	calls := s1.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "room1", calls[0].channel)
	assert.Equal(t, "song", calls[0].key)
	assert.Equal(t, []any{map[string]any{"songCode": "1"}}, calls[0].value)

	proxy.Handle(ctx, ev)
	assert.Len(t, s1.Calls(), 1)
}

func TestProxyDeliversChangedValue(t *testing.T) {
	ctx := context.Background()
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))

	proxy.Handle(ctx, storage("room1", rtm.StorageItem{Key: "song", Value: `[]`}))
	proxy.Handle(ctx, storage("room1", rtm.StorageItem{Key: "song", Value: `[{"songCode":"2"}]`}))

	calls := s1.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []any{}, calls[0].value)
	assert.Equal(t, []any{map[string]any{"songCode": "2"}}, calls[1].value)
}

func TestProxyDedupIsTextual(t *testing.T) {
	ctx := context.Background()
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "seat", attrRef(s1))

	proxy.Handle(ctx, storage("room1", rtm.StorageItem{Key: "seat", Value: `{"a":1,"b":2}`}))
	proxy.Handle(ctx, storage("room1", rtm.StorageItem{Key: "seat", Value: `{"b":2,"a":1}`}))

	assert.Len(t, s1.Calls(), 2)
}

func TestProxySubscribeTwiceDeliversOnce(t *testing.T) {
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))

	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `1`}))

	assert.Len(t, s1.Calls(), 1)
	assert.Equal(t, 1, proxy.Stats().Attributes)
}

func TestProxyUnsubscribeUnknownIsNoop(t *testing.T) {
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	stranger := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))

	require.NotPanics(t, func() {
		proxy.UnsubscribeAttributes("room1", "song", attrRef(stranger))
		proxy.UnsubscribeAttributes("room9", "other", attrRef(stranger))
		proxy.UnsubscribeMessage("room1", delegate.Weak[rtm.MessageSubscriber](&messageRecorder{}))
	})

	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `"x"`}))
	assert.Len(t, s1.Calls(), 1)
	assert.Empty(t, stranger.Calls())
}

func TestProxyFiltersNonStreamChannels(t *testing.T) {
	ctx := context.Background()
	var forwarded []rtm.Event
	proxy := rtm.NewProxy(rtm.WithPassthrough(rtm.PassthroughFunc(func(_ context.Context, ev rtm.Event) {
		forwarded = append(forwarded, ev)
	})))
	attrs := &attrRecorder{}
	users := &userRecorder{}
	conns := &connRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(attrs))
	proxy.SubscribeUser("room1", delegate.Weak[rtm.UserSubscriber](users))
	proxy.SubscribeConnection("room1", delegate.Weak[rtm.ConnectionSubscriber](conns))

	for _, ct := range []rtm.ChannelType{rtm.ChannelTypeNone, rtm.ChannelTypeMessage, rtm.ChannelTypeUser} {
		proxy.Handle(ctx, rtm.StorageEvent{
			Target:      "room1",
			ChannelType: ct,
			Items:       []rtm.StorageItem{{Key: "song", Value: `[1]`}},
		})
		proxy.Handle(ctx, rtm.StorageEvent{Target: "room1", ChannelType: ct})
		proxy.Handle(ctx, rtm.PresenceEvent{
			ChannelName: "room1",
			ChannelType: ct,
			Type:        rtm.PresenceRemoteJoin,
			Publisher:   "u1",
			States:      map[string]string{"name": "u1"},
		})
		proxy.Handle(ctx, rtm.PresenceEvent{ChannelName: "room1", ChannelType: ct, Type: rtm.PresenceSnapshot})
	}

	assert.Empty(t, attrs.Calls())
	assert.Zero(t, users.total())
	assert.Empty(t, conns.empty)
	assert.Len(t, forwarded, 12)
}

func TestProxyItemIsolation(t *testing.T) {
	proxy := rtm.NewProxy()
	bad := &attrRecorder{}
	good := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "broken", attrRef(bad))
	proxy.SubscribeAttributes("room1", "song", attrRef(good))

	proxy.Handle(context.Background(), storage("room1",
		rtm.StorageItem{Key: "broken", Value: `{"unterminated":`},
		rtm.StorageItem{Key: "song", Value: `[{"songCode":"7"}]`},
	))

	assert.Empty(t, bad.Calls())
	require.Len(t, good.Calls(), 1)
	assert.Equal(t, []any{map[string]any{"songCode": "7"}}, good.Calls()[0].value)
}

func TestProxyEmptyStorageSignalsEmptyReceive(t *testing.T) {
	proxy := rtm.NewProxy()
	conns := &connRecorder{}
	proxy.SubscribeConnection("room1", delegate.Weak[rtm.ConnectionSubscriber](conns))

	proxy.Handle(context.Background(), storage("room1"))
	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[]`}))

	assert.Equal(t, []string{"room1"}, conns.empty)
}

func TestProxyPresenceJoinWithEmptyStatesIsDropped(t *testing.T) {
	proxy := rtm.NewProxy()
	users := &userRecorder{}
	proxy.SubscribeUser("room1", delegate.Weak[rtm.UserSubscriber](users))

	proxy.Handle(context.Background(), rtm.PresenceEvent{
		ChannelName: "room1",
		ChannelType: rtm.ChannelTypeStream,
		Type:        rtm.PresenceRemoteJoin,
		Publisher:   "u1",
		States:      map[string]string{},
	})
	proxy.Handle(context.Background(), rtm.PresenceEvent{
		ChannelName: "room1",
		ChannelType: rtm.ChannelTypeStream,
		Type:        rtm.PresenceRemoteStateChanged,
		Publisher:   "u1",
	})

	assert.Zero(t, users.total())
}

func TestProxyPresenceEmptySnapshotIsDelivered(t *testing.T) {
	proxy := rtm.NewProxy()
	users := &userRecorder{}
	proxy.SubscribeUser("room1", delegate.Weak[rtm.UserSubscriber](users))

	proxy.Handle(context.Background(), rtm.PresenceEvent{
		ChannelName: "room1",
		ChannelType: rtm.ChannelTypeStream,
		Type:        rtm.PresenceSnapshot,
		States:      map[string]string{},
	})

	require.Len(t, users.snapshots, 1)
	assert.Empty(t, users.snapshots[0])
	assert.Equal(t, 1, users.total())
}

func TestProxyPresenceDeltas(t *testing.T) {
	proxy := rtm.NewProxy()
	users := &userRecorder{}
	proxy.SubscribeUser("room1", delegate.Weak[rtm.UserSubscriber](users))
	states := map[string]string{"userName": "alice"}

	for _, typ := range []rtm.PresenceType{
		rtm.PresenceRemoteJoin,
		rtm.PresenceRemoteStateChanged,
		rtm.PresenceRemoteLeave,
		rtm.PresenceRemoteTimeout,
		rtm.PresenceInterval,
	} {
		proxy.Handle(context.Background(), rtm.PresenceEvent{
			ChannelName: "room1",
			ChannelType: rtm.ChannelTypeStream,
			Type:        typ,
			Publisher:   "alice",
			States:      states,
		})
	}

	assert.Equal(t, []string{"alice"}, users.joined)
	assert.Equal(t, []string{"alice"}, users.updated)
	assert.Equal(t, []string{"alice", "alice"}, users.left)
	assert.Empty(t, users.snapshots)
}

func TestProxyUnsubscribeFromOwnCallback(t *testing.T) {
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	ref := attrRef(s1)
	s1.onCall = func(attrCall) {
		proxy.UnsubscribeAttributes("room1", "song", ref)
	}
	proxy.SubscribeAttributes("room1", "song", ref)

	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`}))
	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[2]`}))

	assert.Len(t, s1.Calls(), 1)
}

func TestProxyMessages(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	proxy := rtm.NewProxy(rtm.WithLogger(zap.New(core)))
	msgs := &messageRecorder{}
	other := &messageRecorder{}
	proxy.SubscribeMessage("room1", delegate.Weak[rtm.MessageSubscriber](msgs))
	proxy.SubscribeMessage("room2", delegate.Weak[rtm.MessageSubscriber](other))

	proxy.Handle(context.Background(), rtm.MessageEvent{
		ChannelName: "room1",
		MessageType: rtm.MessageTypeString,
		Payload:     []byte("hello"),
	})
	proxy.Handle(context.Background(), rtm.MessageEvent{
		ChannelName: "room1",
		MessageType: rtm.MessageTypeBinary,
		Payload:     []byte{0x01},
	})

	assert.Equal(t, []string{"hello"}, msgs.texts)
	assert.Empty(t, other.texts)
	assert.Equal(t, 1, logs.FilterMessage("recv unknown type message").Len())
}

func TestProxyConnectionEvents(t *testing.T) {
	proxy := rtm.NewProxy()
	room1 := &connRecorder{}
	room2 := &connRecorder{}
	proxy.SubscribeConnection("room1", delegate.Weak[rtm.ConnectionSubscriber](room1))
	proxy.SubscribeConnection("room2", delegate.Weak[rtm.ConnectionSubscriber](room2))

	proxy.Handle(context.Background(), rtm.ConnectionStateEvent{ChannelName: "room1", State: rtm.ConnectionReconnecting})
	proxy.Handle(context.Background(), &rtm.TokenExpiryEvent{})

	assert.Equal(t, []rtm.ConnectionState{rtm.ConnectionReconnecting}, room1.states)
	assert.Empty(t, room2.states)
	assert.Equal(t, []string{""}, room1.expired)
	assert.Equal(t, []string{""}, room2.expired)
}

func TestProxyCleanCacheRedelivers(t *testing.T) {
	ctx := context.Background()
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))
	ev := storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`})

	proxy.Handle(ctx, ev)
	require.NoError(t, proxy.CleanCache(ctx, "room1"))
	proxy.Handle(ctx, ev)

	assert.Len(t, s1.Calls(), 2)
}

func TestProxyReleasedSubscriberIsSkipped(t *testing.T) {
	proxy := rtm.NewProxy()
	s1 := &attrRecorder{}
	ref := attrRef(s1)
	proxy.SubscribeAttributes("room1", "song", ref)
	ref.Release()

	require.NotPanics(t, func() {
		proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`}))
	})
	assert.Empty(t, s1.Calls())
	assert.Zero(t, proxy.Stats().Attributes)
}

type countingSubscriber struct {
	name string
	hits *atomic.Int32
}

func (c *countingSubscriber) OnAttributeChanged(string, string, any) {
	c.hits.Add(1)
}

// subscribeDropped subscribes a listener that nothing else references.
func subscribeDropped(proxy *rtm.Proxy, hits *atomic.Int32) *delegate.Ref[rtm.AttributeSubscriber] {
	ref := delegate.Weak[rtm.AttributeSubscriber](&countingSubscriber{name: "dropped", hits: hits})
	proxy.SubscribeAttributes("room1", "song", ref)
	return ref
}

func TestProxyCollectedSubscriberIsSkipped(t *testing.T) {
	proxy := rtm.NewProxy()
	var hits atomic.Int32
	ref := subscribeDropped(proxy, &hits)

	for i := 0; i < 10 && ref.Alive(); i++ {
		runtime.GC()
	}
	require.False(t, ref.Alive(), "listener survived garbage collection")

	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`}))
	assert.Zero(t, hits.Load())

	stats := proxy.Stats()
	assert.Zero(t, stats.Attributes)
	assert.Zero(t, stats.Topics)
}

type failingCache struct{}

func (failingCache) CheckAndUpdate(context.Context, string, string, string) (bool, error) {
	return false, errors.New("cache down")
}

func (failingCache) Clear(context.Context, string) error { return nil }

func TestProxyCacheFailureDelivers(t *testing.T) {
	proxy := rtm.NewProxy(rtm.WithCache(failingCache{}))
	s1 := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(s1))

	proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`}))

	assert.Len(t, s1.Calls(), 1)
}

func TestProxyPanickingSubscriberDoesNotStopFanOut(t *testing.T) {
	proxy := rtm.NewProxy()
	first := &attrRecorder{onCall: func(attrCall) { panic("subscriber failure") }}
	second := &attrRecorder{}
	proxy.SubscribeAttributes("room1", "song", attrRef(first))
	proxy.SubscribeAttributes("room1", "song", attrRef(second))

	require.NotPanics(t, func() {
		proxy.Handle(context.Background(), storage("room1", rtm.StorageItem{Key: "song", Value: `[1]`}))
	})
	assert.Len(t, first.Calls(), 1)
	assert.Len(t, second.Calls(), 1)
}
