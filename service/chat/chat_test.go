package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"testing"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatListener struct {
	received []chat.ChatMessage
}

func (l *chatListener) OnMessageReceived(msg chat.ChatMessage) {
	l.received = append(l.received, msg)
}

// loopback hands emitted events straight back to the proxy.
type loopback struct {
	proxy *rtm.Proxy
	sent  []rtm.Event
}

func (l *loopback) Emit(ctx context.Context, ev rtm.Event) error {
	l.sent = append(l.sent, ev)
	l.proxy.Handle(ctx, ev)
	return nil
}

func deliver(proxy *rtm.Proxy, channel, text string) {
	proxy.Handle(context.Background(), rtm.MessageEvent{
		ChannelName: channel,
		MessageType: rtm.MessageTypeString,
		Payload:     []byte(text),
	})
}

func TestStructuredAndPlainMessages(t *testing.T) {
	proxy := rtm.NewProxy()
	room := roomctx.New(roomctx.CommonConfig{UserID: "u1"})
	svc := chat.New("room1", room, proxy)
	defer svc.Close()
	listener := &chatListener{}
	svc.BindListener(delegate.Weak[chat.Listener](listener))

	deliver(proxy, "room1", `{"user":{"userId":"u2","userName":"bob"},"content":"hello"}`)
	deliver(proxy, "room1", "just text")
	deliver(proxy, "room1", `{"other":"shape"}`)
	deliver(proxy, "room2", "elsewhere")

	msgs := svc.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "bob", msgs[0].User.UserName)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "just text", msgs[1].Content)
	assert.Empty(t, msgs[1].User.UserID)
	assert.Equal(t, `{"other":"shape"}`, msgs[2].Content)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.Len(t, listener.received, 3)
	runtime.KeepAlive(listener)
}

func TestHistoryIsBounded(t *testing.T) {
	proxy := rtm.NewProxy()
	svc := chat.New("room1", roomctx.New(roomctx.CommonConfig{}), proxy, chat.WithHistory(3))
	defer svc.Close()

	for i := 0; i < 5; i++ {
		deliver(proxy, "room1", fmt.Sprintf("m%d", i))
	}

	msgs := svc.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m4", msgs[2].Content)
}

func TestSend(t *testing.T) {
	proxy := rtm.NewProxy()
	room := roomctx.New(roomctx.CommonConfig{UserID: "u1", UserName: "alice"})
	emitter := &loopback{proxy: proxy}
	svc := chat.New("room1", room, proxy, chat.WithEmitter(emitter))
	defer svc.Close()

	require.NoError(t, svc.Send(context.Background(), "hi all"))
	assert.ErrorIs(t, svc.Send(context.Background(), "  "), chat.ErrEmptyContent)

	require.Len(t, emitter.sent, 1)
	ev := emitter.sent[0].(rtm.MessageEvent)
	var payload chat.Payload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "alice", payload.User.UserName)

	msgs := svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi all", msgs[0].Content)
	assert.Equal(t, "u1", msgs[0].User.UserID)
}

func TestSendWithoutEmitter(t *testing.T) {
	svc := chat.New("room1", roomctx.New(roomctx.CommonConfig{}), rtm.NewProxy())
	defer svc.Close()
	assert.ErrorIs(t, svc.Send(context.Background(), "hi"), chat.ErrNoEmitter)
}
