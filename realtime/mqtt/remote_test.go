package mqtt_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	mmqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/require"
)

func TestRemoteReconnectAndResubscribe(t *testing.T) {
	addr := reserveTCPAddr(t)

	server := startTestBroker(t, addr, listeners.NewTCP(listeners.Config{ID: "t1", Address: addr}))
	defer func() { _ = server.Close() }()

	var (
		mu     sync.Mutex
		states []usmqtt.ConnState
	)
	client, err := usmqtt.NewRemote(usmqtt.RemoteConfig{
		Endpoint:       "tcp://" + addr,
		ClientID:       "remote-reconnect-test",
		ConnectTimeout: 3 * time.Second,
		OnStateChange: func(state usmqtt.ConnState, _ string) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Stop(context.Background()) }()

	received := make(chan string, 16)
	require.NoError(t, client.Subscribe("auikit/rtm/#", 1, func(_ *mmqtt.Client, _ packets.Subscription, pk packets.Packet) {
		received <- string(pk.Payload)
	}))

	publishUntilReceived(t, server, received, "auikit/rtm/storage/room1", "before-restart", 5*time.Second)

	require.NoError(t, server.Close())
	server = startTestBroker(t, addr, listeners.NewTCP(listeners.Config{ID: "t1", Address: addr}))

	// First retry fires after one second.
	publishUntilReceived(t, server, received, "auikit/rtm/storage/room1", "after-restart", 12*time.Second)

	waitUntil(t, 3*time.Second, 20*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 3
	}, "state changes were not reported")
	mu.Lock()
	require.Equal(t, []usmqtt.ConnState{usmqtt.StateConnected, usmqtt.StateReconnecting, usmqtt.StateConnected}, states[:3])
	mu.Unlock()
}

func TestRemoteOverWebsocket(t *testing.T) {
	addr := reserveTCPAddr(t)

	server := startTestBroker(t, addr, listeners.NewWebsocket(listeners.Config{ID: "ws1", Address: addr}))
	defer func() { _ = server.Close() }()

	client, err := usmqtt.NewRemote(usmqtt.RemoteConfig{
		Endpoint:       "ws://" + addr,
		ClientID:       "remote-ws-test",
		ConnectTimeout: 3 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Stop(context.Background()) }()
	require.True(t, client.Connected())

	received := make(chan string, 16)
	require.NoError(t, client.Subscribe("auikit/rtm/message/+", 7, func(_ *mmqtt.Client, _ packets.Subscription, pk packets.Packet) {
		received <- string(pk.Payload)
	}))

	publishUntilReceived(t, server, received, "auikit/rtm/message/room1", "hello", 5*time.Second)
}

func TestRemotePublishRequiresConnection(t *testing.T) {
	client, err := usmqtt.NewRemote(usmqtt.RemoteConfig{Endpoint: "tcp://127.0.0.1:1"})
	require.NoError(t, err)

	require.ErrorIs(t, client.Publish("a/b", []byte("x"), usmqtt.NoRetain, usmqtt.QoS0), usmqtt.ErrNotConnected)
	require.ErrorIs(t, client.Subscribe("a/#", 1, nil), usmqtt.ErrNilHandler)

	_, err = usmqtt.NewRemote(usmqtt.RemoteConfig{})
	require.ErrorIs(t, err, usmqtt.ErrEndpointRequired)
}

func TestRemotePublishReachesBroker(t *testing.T) {
	addr := reserveTCPAddr(t)
	server := startTestBroker(t, addr, listeners.NewTCP(listeners.Config{ID: "t1", Address: addr}))
	defer func() { _ = server.Close() }()

	received := make(chan string, 1)
	require.NoError(t, server.Subscribe("auikit/rtm/#", 1, func(_ *mmqtt.Client, _ packets.Subscription, pk packets.Packet) {
		received <- string(pk.Payload)
	}))

	client, err := usmqtt.NewRemote(usmqtt.RemoteConfig{Endpoint: addr, ConnectTimeout: 3 * time.Second})
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	defer func() { _ = client.Stop(context.Background()) }()

	require.NoError(t, client.Publish("auikit/rtm/storage/room1", []byte(`{"kind":"storage"}`), usmqtt.NoRetain, usmqtt.QoS0))

	select {
	case got := <-received:
		require.Equal(t, `{"kind":"storage"}`, got)
	case <-time.After(5 * time.Second):
		t.Fatal("broker did not receive publish")
	}
}

func startTestBroker(t *testing.T, addr string, l listeners.Listener) *mmqtt.Server {
	t.Helper()

	server := mmqtt.New(&mmqtt.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(l))

	go func() {
		_ = server.Serve()
	}()

	waitUntil(t, 3*time.Second, 50*time.Millisecond, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, "broker did not start listening in time")

	return server
}

func publishUntilReceived(t *testing.T, server *mmqtt.Server, received <-chan string, topic string, payload string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		// Publishing can fail while the broker restarts.
		_ = server.Publish(topic, []byte(payload), false, 0)

		select {
		case got := <-received:
			if got == payload {
				return
			}
		case <-time.After(200 * time.Millisecond):
		}

		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for payload %q", payload)
		}
	}
}

func reserveTCPAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitUntil(t *testing.T, timeout time.Duration, step time.Duration, check func() bool, failMsg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(step)
	}
	t.Fatal(failMsg)
}
