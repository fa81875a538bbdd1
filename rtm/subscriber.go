package rtm

import "context"

// Capability names one of the subscriber interfaces. The proxy keeps one
// registry per capability.
type Capability int

const (
	CapabilityAttribute Capability = iota
	CapabilityMessage
	CapabilityUser
	CapabilityConnection
)

func (c Capability) String() string {
	switch c {
	case CapabilityAttribute:
		return "attribute"
	case CapabilityMessage:
		return "message"
	case CapabilityUser:
		return "user"
	case CapabilityConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// AttributeSubscriber observes one metadata key of a channel. value is the
// parsed JSON document (map[string]any, []any, string, float64, bool or nil).
type AttributeSubscriber interface {
	OnAttributeChanged(channel, key string, value any)
}

type MessageSubscriber interface {
	OnMessageReceived(channel, text string)
}

type UserSubscriber interface {
	OnUserSnapshot(channel, userID string, users []UserState)
	OnUserJoined(channel, userID string, attrs map[string]string)
	OnUserLeft(channel, userID string, attrs map[string]string)
	OnUserUpdated(channel, userID string, attrs map[string]string)
}

type ConnectionSubscriber interface {
	OnConnectionStateChanged(channel string, state ConnectionState, reason string)
	OnTokenWillExpire(channel string)
	// OnEmptyReceive signals a storage event that carried no items, which usually
	// means the remote state is empty or stale.
	OnEmptyReceive(channel string)
}

// Passthrough receives every event before classification, whatever its
// channel type.
type Passthrough interface {
	HandleEvent(ctx context.Context, ev Event)
}

type PassthroughFunc func(ctx context.Context, ev Event)

func (f PassthroughFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
