// Package roomctx holds per-process room state: who the local user is and
// what is known about each joined room. It is constructed once and passed to
// the services that need it.
package roomctx

import (
	"fmt"
	"sync"
)

type UserThumbnail struct {
	UserID     string `json:"userId" mapstructure:"user_id"`
	UserName   string `json:"userName" mapstructure:"user_name"`
	UserAvatar string `json:"userAvatar" mapstructure:"user_avatar"`
}

// CommonConfig identifies the local user and the backend to talk to.
type CommonConfig struct {
	AppID      string `mapstructure:"app_id"`
	Host       string `mapstructure:"host"`
	UserID     string `mapstructure:"user_id"`
	UserName   string `mapstructure:"user_name"`
	UserAvatar string `mapstructure:"user_avatar"`
}

type RoomInfo struct {
	RoomID   string        `json:"roomId"`
	RoomName string        `json:"roomName"`
	Owner    UserThumbnail `json:"owner"`
}

// SeatLayout is the mic-seat arrangement of a room.
type SeatLayout int

const (
	SeatLayoutOne SeatLayout = iota + 1
	SeatLayoutSix
	SeatLayoutEight
	SeatLayoutNine
)

var seatLayoutCounts = map[SeatLayout]int{
	SeatLayoutOne:   1,
	SeatLayoutSix:   6,
	SeatLayoutEight: 8,
	SeatLayoutNine:  9,
}

var seatLayoutNames = map[string]SeatLayout{
	"one":   SeatLayoutOne,
	"six":   SeatLayoutSix,
	"eight": SeatLayoutEight,
	"nine":  SeatLayoutNine,
}

// SeatCount is the number of seats in the layout.
func (l SeatLayout) SeatCount() int {
	return seatLayoutCounts[l]
}

func ParseSeatLayout(name string) (SeatLayout, error) {
	if l, ok := seatLayoutNames[name]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("roomctx: unknown seat layout %q", name)
}

type Context struct {
	mu     sync.RWMutex
	user   UserThumbnail
	common CommonConfig
	rooms  map[string]RoomInfo
	layout SeatLayout
}

func New(common CommonConfig) *Context {
	c := &Context{
		rooms:  make(map[string]RoomInfo),
		layout: SeatLayoutEight,
	}
	c.SetCommonConfig(common)
	return c
}

// SetCommonConfig replaces the common config and takes the current user from it.
func (c *Context) SetCommonConfig(common CommonConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.common = common
	c.user = UserThumbnail{
		UserID:     common.UserID,
		UserName:   common.UserName,
		UserAvatar: common.UserAvatar,
	}
}

func (c *Context) CommonConfig() CommonConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.common
}

func (c *Context) CurrentUser() UserThumbnail {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Context) SetRoomInfo(info RoomInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[info.RoomID] = info
}

func (c *Context) RoomInfo(channel string) (RoomInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.rooms[channel]
	return info, ok
}

func (c *Context) SetSeatLayout(l SeatLayout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = l
}

func (c *Context) SeatLayout() SeatLayout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layout
}

func (c *Context) SeatCount() int {
	return c.SeatLayout().SeatCount()
}

// IsRoomOwner reports whether the current user owns channel. Unknown rooms
// are owned by nobody.
func (c *Context) IsRoomOwner(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.rooms[channel]
	return ok && info.Owner.UserID != "" && info.Owner.UserID == c.user.UserID
}

// Clean forgets everything known about channel.
func (c *Context) Clean(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, channel)
}
