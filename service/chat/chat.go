// Package chat keeps the recent chat history of a room and sends chat
// messages through the relay.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultHistory = 100

var (
	ErrEmptyContent = errors.New("chat: message content is empty")
	ErrNoEmitter    = errors.New("chat: service cannot send messages")
)

// Payload is what travels in the message body.
type Payload struct {
	User    roomctx.UserThumbnail `json:"user"`
	Content string                `json:"content"`
}

type ChatMessage struct {
	ID         string                `json:"id"`
	Channel    string                `json:"channel"`
	User       roomctx.UserThumbnail `json:"user"`
	Content    string                `json:"content"`
	ReceivedAt time.Time             `json:"receivedAt"`
}

type Listener interface {
	OnMessageReceived(msg ChatMessage)
}

type MessageSource interface {
	SubscribeMessage(channel string, ref *delegate.Ref[rtm.MessageSubscriber])
	UnsubscribeMessage(channel string, ref *delegate.Ref[rtm.MessageSubscriber])
}

// Emitter publishes an event to every participant of its channel.
type Emitter interface {
	Emit(ctx context.Context, ev rtm.Event) error
}

type Service struct {
	channel   string
	room      *roomctx.Context
	source    MessageSource
	emitter   Emitter
	history   int
	listeners *delegate.Helper[Listener]
	log       *zap.Logger
	self      *delegate.Ref[rtm.MessageSubscriber]
	now       func() time.Time

	mu       sync.RWMutex
	messages []ChatMessage
	closed   bool
}

type Option func(*Service)

// WithHistory bounds the number of kept messages.
func WithHistory(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.history = n
		}
	}
}

// WithEmitter enables Send.
func WithEmitter(e Emitter) Option {
	return func(s *Service) {
		s.emitter = e
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(channel string, room *roomctx.Context, source MessageSource, opts ...Option) *Service {
	s := &Service{
		channel: channel,
		room:    room,
		source:  source,
		history: DefaultHistory,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.Named("chat").With(zap.String("channel", channel))
	s.listeners = delegate.New[Listener](delegate.WithLogger(s.log), delegate.WithName("chat"))
	s.self = delegate.Weak[rtm.MessageSubscriber](s)
	source.SubscribeMessage(channel, s.self)
	return s
}

func (s *Service) BindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Bind(ref)
}

func (s *Service) UnbindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Unbind(ref)
}

// Messages returns the kept history, oldest first.
func (s *Service) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Send publishes content as the current user. The message is added to the
// history when it comes back through the relay.
func (s *Service) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if s.emitter == nil {
		return ErrNoEmitter
	}
	body, err := json.Marshal(Payload{User: s.room.CurrentUser(), Content: content})
	if err != nil {
		return err
	}
	return s.emitter.Emit(ctx, rtm.MessageEvent{
		ChannelName: s.channel,
		ChannelType: rtm.ChannelTypeMessage,
		MessageType: rtm.MessageTypeString,
		Publisher:   s.room.CurrentUser().UserID,
		Payload:     body,
	})
}

func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.source.UnsubscribeMessage(s.channel, s.self)
	s.listeners.Clear()
}

func (s *Service) OnMessageReceived(channel, text string) {
	if channel != s.channel {
		return
	}
	msg := ChatMessage{
		ID:         uuid.NewString(),
		Channel:    channel,
		ReceivedAt: s.now(),
	}
	if p, ok := parse(text); ok {
		msg.User = p.User
		msg.Content = p.Content
	} else {
		msg.Content = text
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - s.history; over > 0 {
		s.messages = slices.Delete(s.messages, 0, over)
	}
	s.mu.Unlock()

	s.listeners.NotifyAll(func(l Listener) {
		l.OnMessageReceived(msg)
	})
}

// parse accepts only objects that carry content; anything else is plain text.
func parse(text string) (Payload, bool) {
	var p Payload
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return p, false
	}
	if err := json.Unmarshal([]byte(text), &p); err != nil || p.Content == "" {
		return Payload{}, false
	}
	return p, true
}
