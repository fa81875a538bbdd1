// Package jukebox keeps a room's chosen-song queue in sync with the relay and
// forwards queue mutations to the song backend.
package jukebox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/songapi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SongKey is the channel attribute carrying the serialized queue.
const SongKey = "song"

var (
	ErrClosed            = errors.New("jukebox: service is closed")
	ErrUnknownPlayStatus = errors.New("jukebox: unknown play status")
)

type PlayStatus int

const (
	PlayStatusIdle PlayStatus = iota
	PlayStatusPlaying
)

func (s PlayStatus) String() string {
	switch s {
	case PlayStatusIdle:
		return "idle"
	case PlayStatusPlaying:
		return "playing"
	default:
		return fmt.Sprintf("play_status(%d)", int(s))
	}
}

// Music is a catalog entry that can be put on the queue.
type Music struct {
	SongCode    string `json:"songCode" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Singer      string `json:"singer"`
	Poster      string `json:"poster"`
	ReleaseTime string `json:"releaseTime"`
	Duration    int64  `json:"duration" validate:"gte=0"`
	MusicURL    string `json:"musicUrl"`
	LrcURL      string `json:"lrcUrl"`
}

// ChooseMusic is one queued song as published in the song attribute.
type ChooseMusic struct {
	Music
	Owner    roomctx.UserThumbnail `json:"owner"`
	Status   PlayStatus            `json:"status"`
	CreateAt int64                 `json:"createAt"`
	PinAt    int64                 `json:"pinAt"`
}

type Listener interface {
	OnUpdateAllChooseSongs(songs []ChooseMusic)
}

// Backend is the subset of the song backend the service drives.
type Backend interface {
	Add(ctx context.Context, req songapi.AddRequest) error
	Remove(ctx context.Context, req songapi.SongRequest) error
	Pin(ctx context.Context, req songapi.SongRequest) error
	Play(ctx context.Context, req songapi.SongRequest) error
	Stop(ctx context.Context, req songapi.SongRequest) error
}

// AttributeSource is where the service subscribes for queue updates.
type AttributeSource interface {
	SubscribeAttributes(channel, key string, ref *delegate.Ref[rtm.AttributeSubscriber])
	UnsubscribeAttributes(channel, key string, ref *delegate.Ref[rtm.AttributeSubscriber])
}

type Service struct {
	channel   string
	room      *roomctx.Context
	api       Backend
	source    AttributeSource
	validate  *validator.Validate
	listeners *delegate.Helper[Listener]
	log       *zap.Logger
	self      *delegate.Ref[rtm.AttributeSubscriber]
	now       func() time.Time

	mu     sync.RWMutex
	songs  []ChooseMusic
	closed bool
}

// New creates the jukebox of channel and subscribes it to the song attribute.
func New(channel string, room *roomctx.Context, api Backend, source AttributeSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("jukebox").With(zap.String("channel", channel))
	s := &Service{
		channel:   channel,
		room:      room,
		api:       api,
		source:    source,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		listeners: delegate.New[Listener](delegate.WithLogger(log), delegate.WithName("jukebox")),
		log:       log,
		now:       time.Now,
	}
	s.self = delegate.Weak[rtm.AttributeSubscriber](s)
	source.SubscribeAttributes(channel, SongKey, s.self)
	return s
}

func (s *Service) Channel() string {
	return s.channel
}

func (s *Service) BindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Bind(ref)
}

func (s *Service) UnbindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Unbind(ref)
}

// ChooseSongs returns the last queue received from the relay.
func (s *Service) ChooseSongs() []ChooseMusic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.songs)
}

// ChooseSong queues music on behalf of the current user. The queue itself
// changes only when the backend republishes the song attribute.
func (s *Service) ChooseSong(ctx context.Context, music Music) (ChooseMusic, error) {
	if err := s.usable(); err != nil {
		return ChooseMusic{}, err
	}
	if err := s.validate.Struct(music); err != nil {
		return ChooseMusic{}, fmt.Errorf("jukebox: invalid song: %w", err)
	}

	owner := s.room.CurrentUser()
	chosen := ChooseMusic{
		Music:    music,
		Owner:    owner,
		Status:   PlayStatusIdle,
		CreateAt: s.now().UnixMilli(),
	}

	err := s.api.Add(ctx, songapi.AddRequest{
		RoomID:      s.channel,
		UserID:      owner.UserID,
		SongCode:    music.SongCode,
		Name:        music.Name,
		Singer:      music.Singer,
		Poster:      music.Poster,
		ReleaseTime: music.ReleaseTime,
		Duration:    music.Duration,
		MusicURL:    music.MusicURL,
		LrcURL:      music.LrcURL,
		Owner:       owner,
	})
	if err != nil {
		s.log.Warn("choose song failed", zap.String("song_code", music.SongCode), zap.Error(err))
		return ChooseMusic{}, err
	}
	return chosen, nil
}

func (s *Service) RemoveSong(ctx context.Context, songCode string) error {
	return s.songCall(ctx, "remove", songCode, s.api.Remove)
}

func (s *Service) PinSong(ctx context.Context, songCode string) error {
	return s.songCall(ctx, "pin", songCode, s.api.Pin)
}

// UpdatePlayStatus starts (PlayStatusPlaying) or stops (PlayStatusIdle) a song.
func (s *Service) UpdatePlayStatus(ctx context.Context, songCode string, status PlayStatus) error {
	switch status {
	case PlayStatusPlaying:
		return s.songCall(ctx, "play", songCode, s.api.Play)
	case PlayStatusIdle:
		return s.songCall(ctx, "stop", songCode, s.api.Stop)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPlayStatus, int(status))
	}
}

// Close unsubscribes from the relay. Later mutations fail with ErrClosed.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.source.UnsubscribeAttributes(s.channel, SongKey, s.self)
	s.listeners.Clear()
}

func (s *Service) OnAttributeChanged(channel, key string, value any) {
	if key != SongKey || channel != s.channel {
		return
	}
	songs, err := rtm.DecodeAttribute[[]ChooseMusic](value)
	if err != nil {
		s.log.Warn("decode song list failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.songs = songs
	s.mu.Unlock()

	s.log.Debug("song list changed", zap.Int("songs", len(songs)))
	s.listeners.NotifyAll(func(l Listener) {
		l.OnUpdateAllChooseSongs(slices.Clone(songs))
	})
}

func (s *Service) songCall(ctx context.Context, op, songCode string, call func(context.Context, songapi.SongRequest) error) error {
	if err := s.usable(); err != nil {
		return err
	}
	req := songapi.SongRequest{
		RoomID:   s.channel,
		SongCode: songCode,
		UserID:   s.room.CurrentUser().UserID,
	}
	if err := call(ctx, req); err != nil {
		s.log.Warn("song request failed", zap.String("op", op), zap.String("song_code", songCode), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) usable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
