// Package rooms owns the per-channel services of every joined room. Services
// subscribe to the proxy through weak refs, so a Room held here is what keeps
// them receiving events.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/chat"
	"github.com/apex-wang/AUIKit/service/jukebox"
	"github.com/apex-wang/AUIKit/service/member"
	"github.com/apex-wang/AUIKit/service/micseat"
	"go.uber.org/zap"
)

var (
	ErrEmptyChannel = errors.New("rooms: channel is empty")
	ErrNotJoined    = errors.New("rooms: room is not joined")
)

// Source is the subscription surface every room service needs. *rtm.Proxy
// satisfies it.
type Source interface {
	jukebox.AttributeSource
	chat.MessageSource
	member.Source
	CleanCache(ctx context.Context, channel string) error
}

type Room struct {
	Channel string
	Jukebox *jukebox.Service
	MicSeat *micseat.Service
	Chat    *chat.Service
	Member  *member.Service
}

func (r *Room) close() {
	r.Jukebox.Close()
	r.MicSeat.Close()
	r.Chat.Close()
	r.Member.Close()
}

type Config struct {
	ChatHistory int `mapstructure:"chat_history" default:"100" validate:"gte=1"`
}

type Manager struct {
	cfg     Config
	ctx     *roomctx.Context
	songs   jukebox.Backend
	source  Source
	emitter chat.Emitter
	log     *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(cfg Config, ctx *roomctx.Context, songs jukebox.Backend, source Source, emitter chat.Emitter, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		ctx:     ctx,
		songs:   songs,
		source:  source,
		emitter: emitter,
		log:     log.Named("rooms"),
		rooms:   make(map[string]*Room),
	}
}

// Join returns the room of channel, creating its services on first use.
func (m *Manager) Join(channel string) (*Room, error) {
	return m.JoinRoom(roomctx.RoomInfo{RoomID: channel})
}

// Create joins channel as its owner.
func (m *Manager) Create(channel, name string) (*Room, error) {
	return m.JoinRoom(roomctx.RoomInfo{RoomID: channel, RoomName: name, Owner: m.ctx.CurrentUser()})
}

// JoinRoom joins info.RoomID and records info in the room context. A bare
// info never overwrites what an earlier join recorded.
func (m *Manager) JoinRoom(info roomctx.RoomInfo) (*Room, error) {
	channel := strings.Clone(strings.TrimSpace(info.RoomID))
	if channel == "" {
		return nil, ErrEmptyChannel
	}
	info.RoomID = channel

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, known := m.ctx.RoomInfo(channel); !known || info.RoomName != "" || info.Owner.UserID != "" {
		m.ctx.SetRoomInfo(info)
	}
	if r, ok := m.rooms[channel]; ok {
		return r, nil
	}
	chatOpts := []chat.Option{chat.WithHistory(m.cfg.ChatHistory), chat.WithLogger(m.log)}
	if m.emitter != nil {
		chatOpts = append(chatOpts, chat.WithEmitter(m.emitter))
	}
	r := &Room{
		Channel: channel,
		Jukebox: jukebox.New(channel, m.ctx, m.songs, m.source, m.log),
		MicSeat: micseat.New(channel, m.ctx, m.source, m.log),
		Chat:    chat.New(channel, m.ctx, m.source, chatOpts...),
		Member:  member.New(channel, m.source, m.log),
	}
	m.rooms[channel] = r
	m.log.Info("room joined", zap.String("channel", channel), zap.String("owner", info.Owner.UserID))
	return r, nil
}

func (m *Manager) Room(channel string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[channel]
	return r, ok
}

// Lookup is Room with ErrNotJoined for unknown channels.
func (m *Manager) Lookup(channel string) (*Room, error) {
	if r, ok := m.Room(channel); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotJoined, channel)
}

// Channels lists joined channels in lexical order.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rooms))
	for ch := range m.rooms {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Leave closes the room's services, forgets its room info and drops its
// cached attribute values so a rejoin sees the full state again.
func (m *Manager) Leave(ctx context.Context, channel string) error {
	m.mu.Lock()
	r, ok := m.rooms[channel]
	delete(m.rooms, channel)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	r.close()
	m.ctx.Clean(channel)
	m.log.Info("room left", zap.String("channel", channel))
	return m.source.CleanCache(ctx, channel)
}

func (m *Manager) Close() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.close()
	}
}

var _ Source = (*rtm.Proxy)(nil)
