package mqtt_test

import (
	"testing"

	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"auikit/rtm/#", "auikit/rtm/storage/room1", true},
		{"auikit/rtm/#", "auikit/rtm", true},
		{"auikit/rtm/+/room1", "auikit/rtm/presence/room1", true},
		{"auikit/rtm/+/room1", "auikit/rtm/presence/room2", false},
		{"auikit/rtm/+", "auikit/rtm/presence/room1", false},
		{"auikit/rtm/storage/room1", "auikit/rtm/storage/room1", true},
		{"auikit/rtm/storage/room1/x", "auikit/rtm/storage/room1", false},
		{"#", "anything/at/all", true},
		{"#", "$SYS/broker/uptime", false},
		{"+/broker/uptime", "$SYS/broker/uptime", false},
		{"$SYS/#", "$SYS/broker/uptime", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, usmqtt.MatchTopic(tt.filter, tt.topic), "%s ~ %s", tt.filter, tt.topic)
	}
}
