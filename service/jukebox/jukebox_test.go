package jukebox_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/jukebox"
	"github.com/apex-wang/AUIKit/service/songapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendCall struct {
	op  string
	req any
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall
	err   error
}

func (b *fakeBackend) record(op string, req any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, backendCall{op: op, req: req})
	return b.err
}

func (b *fakeBackend) Add(_ context.Context, req songapi.AddRequest) error {
	return b.record("add", req)
}

func (b *fakeBackend) Remove(_ context.Context, req songapi.SongRequest) error {
	return b.record("remove", req)
}

func (b *fakeBackend) Pin(_ context.Context, req songapi.SongRequest) error {
	return b.record("pin", req)
}

func (b *fakeBackend) Play(_ context.Context, req songapi.SongRequest) error {
	return b.record("play", req)
}

func (b *fakeBackend) Stop(_ context.Context, req songapi.SongRequest) error {
	return b.record("stop", req)
}

func (b *fakeBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

type songListener struct {
	updates [][]jukebox.ChooseMusic
}

func (l *songListener) OnUpdateAllChooseSongs(songs []jukebox.ChooseMusic) {
	l.updates = append(l.updates, songs)
}

const songList = `[{"songCode":"1001","name":"Moon","singer":"Teresa","duration":240,` +
	`"owner":{"userId":"u1","userName":"alice","userAvatar":"a.png"},"status":1,"createAt":1700000000000,"pinAt":0},` +
	`{"songCode":"1002","name":"River","status":0,"createAt":1700000001000}]`

func newService(t *testing.T) (*jukebox.Service, *rtm.Proxy, *fakeBackend) {
	t.Helper()
	proxy := rtm.NewProxy()
	api := &fakeBackend{}
	room := roomctx.New(roomctx.CommonConfig{UserID: "u1", UserName: "alice", UserAvatar: "a.png"})
	svc := jukebox.New("room1", room, api, proxy, nil)
	t.Cleanup(svc.Close)
	return svc, proxy, api
}

func publishSongs(proxy *rtm.Proxy, channel, value string) {
	proxy.Handle(context.Background(), rtm.StorageEvent{
		Target:      channel,
		ChannelType: rtm.ChannelTypeStream,
		StorageType: rtm.StorageTypeChannel,
		EventType:   rtm.StorageEventUpdate,
		Items:       []rtm.StorageItem{{Key: jukebox.SongKey, Value: value}},
	})
}

func TestSongListFromRelay(t *testing.T) {
	svc, proxy, _ := newService(t)
	listener := &songListener{}
	svc.BindListener(delegate.Weak[jukebox.Listener](listener))

	publishSongs(proxy, "room1", songList)

	songs := svc.ChooseSongs()
	require.Len(t, songs, 2)
	assert.Equal(t, "1001", songs[0].SongCode)
	assert.Equal(t, "Moon", songs[0].Name)
	assert.Equal(t, int64(240), songs[0].Duration)
	assert.Equal(t, "alice", songs[0].Owner.UserName)
	assert.Equal(t, jukebox.PlayStatusPlaying, songs[0].Status)
	assert.Equal(t, int64(1700000000000), songs[0].CreateAt)
	assert.Equal(t, jukebox.PlayStatusIdle, songs[1].Status)

	require.Len(t, listener.updates, 1)
	assert.Equal(t, songs, listener.updates[0])

	// Same value again is deduplicated by the proxy.
	publishSongs(proxy, "room1", songList)
	assert.Len(t, listener.updates, 1)

	publishSongs(proxy, "room1", `[]`)
	assert.Empty(t, svc.ChooseSongs())
	assert.Len(t, listener.updates, 2)
	runtime.KeepAlive(listener)
}

func TestSongListIgnoresOtherRooms(t *testing.T) {
	svc, proxy, _ := newService(t)

	publishSongs(proxy, "room2", songList)
	assert.Empty(t, svc.ChooseSongs())
}

func TestUndecodableSongListKeepsPrevious(t *testing.T) {
	svc, proxy, _ := newService(t)

	publishSongs(proxy, "room1", songList)
	publishSongs(proxy, "room1", `"broken"`)
	assert.Len(t, svc.ChooseSongs(), 2)
}

func TestChooseSong(t *testing.T) {
	svc, _, api := newService(t)

	chosen, err := svc.ChooseSong(context.Background(), jukebox.Music{
		SongCode: "1001",
		Name:     "Moon",
		Singer:   "Teresa",
		Duration: 240,
		MusicURL: "https://example.com/1001.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", chosen.Owner.UserID)
	assert.Equal(t, jukebox.PlayStatusIdle, chosen.Status)
	assert.Zero(t, chosen.PinAt)
	assert.NotZero(t, chosen.CreateAt)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "add", calls[0].op)
	req := calls[0].req.(songapi.AddRequest)
	assert.Equal(t, "room1", req.RoomID)
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "1001", req.SongCode)
	assert.Equal(t, "https://example.com/1001.mp3", req.MusicURL)
	assert.Equal(t, roomctx.UserThumbnail{UserID: "u1", UserName: "alice", UserAvatar: "a.png"}, req.Owner)
}

func TestChooseSongValidates(t *testing.T) {
	svc, _, api := newService(t)

	_, err := svc.ChooseSong(context.Background(), jukebox.Music{Name: "no code"})
	assert.Error(t, err)
	assert.Empty(t, api.Calls())
}

func TestSongMutations(t *testing.T) {
	svc, _, api := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.RemoveSong(ctx, "1"))
	require.NoError(t, svc.PinSong(ctx, "2"))
	require.NoError(t, svc.UpdatePlayStatus(ctx, "3", jukebox.PlayStatusPlaying))
	require.NoError(t, svc.UpdatePlayStatus(ctx, "4", jukebox.PlayStatusIdle))
	assert.ErrorIs(t, svc.UpdatePlayStatus(ctx, "5", jukebox.PlayStatus(7)), jukebox.ErrUnknownPlayStatus)

	calls := api.Calls()
	require.Len(t, calls, 4)
	ops := []string{calls[0].op, calls[1].op, calls[2].op, calls[3].op}
	assert.Equal(t, []string{"remove", "pin", "play", "stop"}, ops)
	assert.Equal(t, songapi.SongRequest{RoomID: "room1", SongCode: "3", UserID: "u1"}, calls[2].req)
}

func TestBackendErrorPropagates(t *testing.T) {
	svc, _, api := newService(t)
	api.err = &songapi.Error{Code: 1001, Message: "busy"}

	err := svc.PinSong(context.Background(), "1")

	var apiErr *songapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1001, apiErr.Code)
}

func TestCloseUnsubscribes(t *testing.T) {
	svc, proxy, _ := newService(t)
	assert.Equal(t, 1, proxy.Stats().Attributes)

	svc.Close()
	assert.Equal(t, 0, proxy.Stats().Attributes)
	assert.ErrorIs(t, svc.RemoveSong(context.Background(), "1"), jukebox.ErrClosed)

	publishSongs(proxy, "room1", songList)
	assert.Empty(t, svc.ChooseSongs())
}
