package rooms_test

import (
	"context"
	"testing"
	"unsafe"

	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/rooms"
	"github.com/apex-wang/AUIKit/service/songapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSongs struct{}

func (nopSongs) Add(context.Context, songapi.AddRequest) error     { return nil }
func (nopSongs) Remove(context.Context, songapi.SongRequest) error { return nil }
func (nopSongs) Pin(context.Context, songapi.SongRequest) error    { return nil }
func (nopSongs) Play(context.Context, songapi.SongRequest) error   { return nil }
func (nopSongs) Stop(context.Context, songapi.SongRequest) error   { return nil }

func newManager(t *testing.T) (*rooms.Manager, *rtm.Proxy, *roomctx.Context) {
	t.Helper()
	proxy := rtm.NewProxy()
	ctx := roomctx.New(roomctx.CommonConfig{UserID: "u1"})
	m := rooms.NewManager(rooms.Config{ChatHistory: 10}, ctx, nopSongs{}, proxy, nil, nil)
	t.Cleanup(m.Close)
	return m, proxy, ctx
}

func TestJoinIsIdempotent(t *testing.T) {
	m, proxy, _ := newManager(t)

	a, err := m.Join("room1")
	require.NoError(t, err)
	b, err := m.Join(" room1 ")
	require.NoError(t, err)
	assert.Same(t, a, b)

	stats := proxy.Stats()
	assert.Equal(t, 2, stats.Attributes)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 1, stats.Connections)

	_, err = m.Join("  ")
	assert.ErrorIs(t, err, rooms.ErrEmptyChannel)
}

func TestRoomReceivesEvents(t *testing.T) {
	m, proxy, _ := newManager(t)
	room, err := m.Join("room1")
	require.NoError(t, err)

	proxy.Handle(context.Background(), rtm.StorageEvent{
		Target:      "room1",
		ChannelType: rtm.ChannelTypeStream,
		Items:       []rtm.StorageItem{{Key: "song", Value: `[{"songCode":"1","name":"a"}]`}},
	})
	proxy.Handle(context.Background(), rtm.MessageEvent{
		ChannelName: "room1",
		MessageType: rtm.MessageTypeString,
		Payload:     []byte("hello"),
	})

	assert.Len(t, room.Jukebox.ChooseSongs(), 1)
	assert.Len(t, room.Chat.Messages(), 1)
}

func TestLeave(t *testing.T) {
	m, proxy, ctx := newManager(t)
	ctx.SetRoomInfo(roomctx.RoomInfo{RoomID: "room1"})
	_, err := m.Join("room1")
	require.NoError(t, err)
	_, err = m.Join("room2")
	require.NoError(t, err)
	assert.Equal(t, []string{"room1", "room2"}, m.Channels())

	require.NoError(t, m.Leave(context.Background(), "room1"))
	require.NoError(t, m.Leave(context.Background(), "unknown"))

	_, ok := m.Room("room1")
	assert.False(t, ok)
	_, ok = ctx.RoomInfo("room1")
	assert.False(t, ok)
	assert.Equal(t, []string{"room2"}, m.Channels())
	assert.Equal(t, 1, proxy.Stats().Messages)

	m.Close()
	assert.Zero(t, proxy.Stats().Messages)
	assert.Empty(t, m.Channels())
}

func TestJoinRecordsRoomInfo(t *testing.T) {
	m, _, ctx := newManager(t)

	_, err := m.Create("room1", "karaoke")
	require.NoError(t, err)
	assert.True(t, ctx.IsRoomOwner("room1"))

	// a later bare join keeps the owner
	_, err = m.Join("room1")
	require.NoError(t, err)
	info, ok := ctx.RoomInfo("room1")
	require.True(t, ok)
	assert.Equal(t, "karaoke", info.RoomName)
	assert.Equal(t, "u1", info.Owner.UserID)

	_, err = m.JoinRoom(roomctx.RoomInfo{RoomID: " room2 ", Owner: roomctx.UserThumbnail{UserID: "u2"}})
	require.NoError(t, err)
	info, ok = ctx.RoomInfo("room2")
	require.True(t, ok)
	assert.Equal(t, "room2", info.RoomID)
	assert.False(t, ctx.IsRoomOwner("room2"))

	_, err = m.Join("room3")
	require.NoError(t, err)
	_, ok = ctx.RoomInfo("room3")
	assert.True(t, ok)
	assert.False(t, ctx.IsRoomOwner("room3"))
}

func TestLookup(t *testing.T) {
	m, _, _ := newManager(t)

	_, err := m.Lookup("room1")
	assert.ErrorIs(t, err, rooms.ErrNotJoined)

	joined, err := m.Join("room1")
	require.NoError(t, err)
	got, err := m.Lookup("room1")
	require.NoError(t, err)
	assert.Same(t, joined, got)
}

func TestJoinKeepsChannelOwnership(t *testing.T) {
	m, _, _ := newManager(t)

	// fasthttp hands out strings that alias its request buffers
	buf := []byte("room1")
	_, err := m.Join(unsafe.String(&buf[0], len(buf)))
	require.NoError(t, err)
	copy(buf, "xxxxx")

	_, ok := m.Room("room1")
	assert.True(t, ok)
	assert.Equal(t, []string{"room1"}, m.Channels())
}
