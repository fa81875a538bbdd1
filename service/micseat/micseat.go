// Package micseat mirrors a room's mic seats from the micSeat channel
// attribute and reports per-seat transitions to listeners.
package micseat

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"go.uber.org/zap"
)

const SeatKey = "micSeat"

type SeatStatus int

const (
	SeatIdle SeatStatus = iota
	SeatUsed
	SeatLocked
)

func (s SeatStatus) String() string {
	switch s {
	case SeatIdle:
		return "idle"
	case SeatUsed:
		return "used"
	case SeatLocked:
		return "locked"
	default:
		return fmt.Sprintf("seat_status(%d)", int(s))
	}
}

type MicSeat struct {
	SeatIndex int                   `json:"seatIndex"`
	Owner     roomctx.UserThumbnail `json:"owner"`
	Status    SeatStatus            `json:"seatStatus"`
	MuteAudio bool                  `json:"muteAudio"`
	MuteVideo bool                  `json:"muteVideo"`
}

// Occupied reports whether a user sits on the seat.
func (s MicSeat) Occupied() bool {
	return s.Owner.UserID != ""
}

type Listener interface {
	OnSeatsChanged(seats []MicSeat)
	OnAnchorEnterSeat(index int, user roomctx.UserThumbnail)
	OnAnchorLeaveSeat(index int, user roomctx.UserThumbnail)
	OnSeatAudioMute(index int, muted bool)
	OnSeatVideoMute(index int, muted bool)
	OnSeatClose(index int, locked bool)
}

type AttributeSource interface {
	SubscribeAttributes(channel, key string, ref *delegate.Ref[rtm.AttributeSubscriber])
	UnsubscribeAttributes(channel, key string, ref *delegate.Ref[rtm.AttributeSubscriber])
}

type Service struct {
	channel   string
	room      *roomctx.Context
	source    AttributeSource
	listeners *delegate.Helper[Listener]
	log       *zap.Logger
	self      *delegate.Ref[rtm.AttributeSubscriber]

	mu     sync.RWMutex
	seats  []MicSeat
	closed bool
}

// New subscribes a mic-seat mirror for channel. Until the first update every
// seat of the room layout is idle.
func New(channel string, room *roomctx.Context, source AttributeSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("micseat").With(zap.String("channel", channel))
	s := &Service{
		channel:   channel,
		room:      room,
		source:    source,
		listeners: delegate.New[Listener](delegate.WithLogger(log), delegate.WithName("micseat")),
		log:       log,
		seats:     pad(nil, room.SeatCount()),
	}
	s.self = delegate.Weak[rtm.AttributeSubscriber](s)
	source.SubscribeAttributes(channel, SeatKey, s.self)
	return s
}

func (s *Service) BindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Bind(ref)
}

func (s *Service) UnbindListener(ref *delegate.Ref[Listener]) {
	s.listeners.Unbind(ref)
}

// Seats returns the seats ordered by index.
func (s *Service) Seats() []MicSeat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.seats)
}

func (s *Service) Seat(index int) (MicSeat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.seats) {
		return MicSeat{}, false
	}
	return s.seats[index], true
}

// SeatOf returns the index of the seat userID sits on.
func (s *Service) SeatOf(userID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, seat := range s.seats {
		if seat.Owner.UserID == userID && userID != "" {
			return seat.SeatIndex, true
		}
	}
	return 0, false
}

func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.source.UnsubscribeAttributes(s.channel, SeatKey, s.self)
	s.listeners.Clear()
}

func (s *Service) OnAttributeChanged(channel, key string, value any) {
	if key != SeatKey || channel != s.channel {
		return
	}
	raw, err := rtm.DecodeAttribute[map[string]MicSeat](value)
	if err != nil {
		s.log.Warn("decode mic seats failed", zap.Error(err))
		return
	}

	count := s.room.SeatCount()
	seats := make([]MicSeat, 0, len(raw))
	for k, seat := range raw {
		if idx, err := strconv.Atoi(k); err == nil {
			seat.SeatIndex = idx
		}
		if seat.SeatIndex < 0 || (count > 0 && seat.SeatIndex >= count) {
			s.log.Warn("out of range seat index dropped", zap.String("key", k), zap.Int("seats", count))
			continue
		}
		seats = append(seats, seat)
	}
	seats = pad(seats, count)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.seats
	s.seats = seats
	s.mu.Unlock()

	events := diff(prev, seats)
	s.listeners.NotifyAll(func(l Listener) {
		for _, ev := range events {
			ev(l)
		}
		l.OnSeatsChanged(slices.Clone(seats))
	})
}

// pad sorts seats by index and fills holes up to count with idle seats.
func pad(seats []MicSeat, count int) []MicSeat {
	byIndex := make(map[int]MicSeat, len(seats))
	maxIndex := count - 1
	for _, seat := range seats {
		byIndex[seat.SeatIndex] = seat
		maxIndex = max(maxIndex, seat.SeatIndex)
	}
	out := make([]MicSeat, 0, maxIndex+1)
	for i := 0; i <= maxIndex; i++ {
		seat, ok := byIndex[i]
		if !ok {
			seat = MicSeat{SeatIndex: i}
		}
		out = append(out, seat)
	}
	return out
}

func diff(prev, next []MicSeat) []func(Listener) {
	var events []func(Listener)
	for i, cur := range next {
		var old MicSeat
		if i < len(prev) {
			old = prev[i]
		}
		idx := cur.SeatIndex

		if old.Owner.UserID != cur.Owner.UserID {
			if old.Occupied() {
				user := old.Owner
				events = append(events, func(l Listener) { l.OnAnchorLeaveSeat(idx, user) })
			}
			if cur.Occupied() {
				user := cur.Owner
				events = append(events, func(l Listener) { l.OnAnchorEnterSeat(idx, user) })
			}
		}
		if old.MuteAudio != cur.MuteAudio {
			muted := cur.MuteAudio
			events = append(events, func(l Listener) { l.OnSeatAudioMute(idx, muted) })
		}
		if old.MuteVideo != cur.MuteVideo {
			muted := cur.MuteVideo
			events = append(events, func(l Listener) { l.OnSeatVideoMute(idx, muted) })
		}
		if (old.Status == SeatLocked) != (cur.Status == SeatLocked) {
			locked := cur.Status == SeatLocked
			events = append(events, func(l Listener) { l.OnSeatClose(idx, locked) })
		}
	}
	return events
}
