// Package member tracks who is present in a room from presence events and
// forwards the connection state of the room's channel.
package member

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"go.uber.org/zap"
)

// Presence state keys carrying the user's profile.
const (
	StateUserName   = "userName"
	StateUserAvatar = "userAvatar"
)

type Member struct {
	roomctx.UserThumbnail
	States map[string]string `json:"states,omitempty"`
}

type Listener interface {
	OnMembersChanged(members []Member)
	OnMemberJoined(m Member)
	OnMemberLeft(m Member)
	OnMemberUpdated(m Member)
	OnConnectionStateChanged(state rtm.ConnectionState, reason string)
	OnTokenWillExpire()
	OnEmptyReceive()
}

type Source interface {
	SubscribeUser(channel string, ref *delegate.Ref[rtm.UserSubscriber])
	UnsubscribeUser(channel string, ref *delegate.Ref[rtm.UserSubscriber])
	SubscribeConnection(channel string, ref *delegate.Ref[rtm.ConnectionSubscriber])
	UnsubscribeConnection(channel string, ref *delegate.Ref[rtm.ConnectionSubscriber])
}

type Service struct {
	channel   string
	source    Source
	listeners *delegate.Helper[Listener]
	log       *zap.Logger
	userRef   *delegate.Ref[rtm.UserSubscriber]
	connRef   *delegate.Ref[rtm.ConnectionSubscriber]

	mu      sync.RWMutex
	members map[string]Member
	state   rtm.ConnectionState
	closed  bool
}

func New(channel string, source Source, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("member").With(zap.String("channel", channel))
	s := &Service{
		channel:   channel,
		source:    source,
		listeners: delegate.New[Listener](delegate.WithLogger(log), delegate.WithName("member")),
		log:       log,
		members:   make(map[string]Member),
	}
	s.userRef = delegate.Weak[rtm.UserSubscriber](s)
	s.connRef = delegate.Weak[rtm.ConnectionSubscriber](s)
	source.SubscribeUser(channel, s.userRef)
	source.SubscribeConnection(channel, s.connRef)
	return s
}

func (s *Service) BindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Bind(ref)
}

func (s *Service) UnbindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Unbind(ref)
}

// Members returns the current members ordered by user id.
func (s *Service) Members() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Service) Member(userID string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[userID]
	return m, ok
}

// ConnectionState is the last state reported for the channel.
func (s *Service) ConnectionState() rtm.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.source.UnsubscribeUser(s.channel, s.userRef)
	s.source.UnsubscribeConnection(s.channel, s.connRef)
	s.listeners.Clear()
}

func (s *Service) OnUserSnapshot(channel, _ string, users []rtm.UserState) {
	if channel != s.channel {
		return
	}
	next := make(map[string]Member, len(users))
	for _, u := range users {
		if u.UserID == "" {
			continue
		}
		next[u.UserID] = newMember(u.UserID, u.States)
	}

	members, ok := s.update(func() {
		s.members = next
	})
	if !ok {
		return
	}
	s.log.Debug("member snapshot", zap.Int("members", len(members)))
	s.listeners.NotifyAll(func(l Listener) {
		l.OnMembersChanged(slices.Clone(members))
	})
}

func (s *Service) OnUserJoined(channel, userID string, attrs map[string]string) {
	s.upsert(channel, userID, attrs, Listener.OnMemberJoined)
}

func (s *Service) OnUserUpdated(channel, userID string, attrs map[string]string) {
	s.upsert(channel, userID, attrs, Listener.OnMemberUpdated)
}

func (s *Service) OnUserLeft(channel, userID string, _ map[string]string) {
	if channel != s.channel {
		return
	}
	var (
		left  Member
		known bool
	)
	members, ok := s.update(func() {
		left, known = s.members[userID]
		delete(s.members, userID)
	})
	if !ok || !known {
		return
	}
	s.listeners.NotifyAll(func(l Listener) {
		l.OnMemberLeft(left)
		l.OnMembersChanged(slices.Clone(members))
	})
}

func (s *Service) OnConnectionStateChanged(channel string, state rtm.ConnectionState, reason string) {
	if channel != s.channel && channel != "" {
		return
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.listeners.NotifyAll(func(l Listener) {
		l.OnConnectionStateChanged(state, reason)
	})
}

func (s *Service) OnTokenWillExpire(string) {
	s.listeners.NotifyAll(Listener.OnTokenWillExpire)
}

func (s *Service) OnEmptyReceive(channel string) {
	if channel != s.channel {
		return
	}
	s.listeners.NotifyAll(Listener.OnEmptyReceive)
}

func (s *Service) upsert(channel, userID string, attrs map[string]string, notify func(Listener, Member)) {
	if channel != s.channel || userID == "" {
		return
	}
	m := newMember(userID, attrs)
	members, ok := s.update(func() {
		s.members[userID] = m
	})
	if !ok {
		return
	}
	s.listeners.NotifyAll(func(l Listener) {
		notify(l, m)
		l.OnMembersChanged(slices.Clone(members))
	})
}

// update applies fn under the lock and returns the resulting member list.
func (s *Service) update(fn func()) ([]Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	fn()
	return s.sortedLocked(), true
}

func (s *Service) sortedLocked() []Member {
	out := slices.Collect(maps.Values(s.members))
	slices.SortFunc(out, func(a, b Member) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}

func newMember(userID string, states map[string]string) Member {
	return Member{
		UserThumbnail: roomctx.UserThumbnail{
			UserID:     userID,
			UserName:   states[StateUserName],
			UserAvatar: states[StateUserAvatar],
		},
		States: maps.Clone(states),
	}
}
