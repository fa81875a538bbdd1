package realtime_test

import (
	"runtime"
	"strings"
	"testing"

	"github.com/apex-wang/AUIKit/delegate"
	"github.com/apex-wang/AUIKit/realtime"
	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBrokerModes(t *testing.T) {
	broker, err := realtime.NewBroker(realtime.Config{}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &usmqtt.Server{}, broker)

	broker, err = realtime.NewBroker(realtime.Config{Broker: realtime.BrokerConfig{
		Mode:     realtime.BrokerModeExternal,
		Endpoint: "tcp://127.0.0.1:1883",
	}}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &usmqtt.Remote{}, broker)

	_, err = realtime.NewBroker(realtime.Config{Broker: realtime.BrokerConfig{Mode: realtime.BrokerModeExternal}}, nil, nil)
	assert.ErrorIs(t, err, usmqtt.ErrEndpointRequired)

	_, err = realtime.NewBroker(realtime.Config{Broker: realtime.BrokerConfig{Mode: "cluster"}}, nil, nil)
	assert.ErrorIs(t, err, realtime.ErrInvalidBrokerMode)
}

func TestDefaultClientID(t *testing.T) {
	a := realtime.DefaultClientID()
	b := realtime.DefaultClientID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "auikitd-"))
}

type stateSink struct {
	states  []rtm.ConnectionState
	reasons []string
}

func (s *stateSink) OnConnectionStateChanged(_ string, state rtm.ConnectionState, reason string) {
	s.states = append(s.states, state)
	s.reasons = append(s.reasons, reason)
}

func (s *stateSink) OnTokenWillExpire(string) {}
func (s *stateSink) OnEmptyReceive(string)    {}

func TestConnectionNotifierBroadcasts(t *testing.T) {
	proxy := rtm.NewProxy()
	sink := &stateSink{}
	proxy.SubscribeConnection("room1", delegate.Weak[rtm.ConnectionSubscriber](sink))

	notify := realtime.ConnectionNotifier(proxy)
	notify(usmqtt.StateConnected, "connected")
	notify(usmqtt.StateReconnecting, "connection lost")
	notify(usmqtt.StateDisconnected, "stopped")

	assert.Equal(t, []rtm.ConnectionState{rtm.ConnectionConnected, rtm.ConnectionReconnecting, rtm.ConnectionDisconnected}, sink.states)
	assert.Equal(t, []string{"connected", "connection lost", "stopped"}, sink.reasons)
	runtime.KeepAlive(sink)
}
