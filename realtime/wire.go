package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apex-wang/AUIKit/rtm"
)

const DefaultPrefix = "auikit/rtm"

// Envelope is the JSON body of every relayed event. Enum fields carry their
// lower-case names; unset ones decode to the zero value.
type Envelope struct {
	Kind         string            `json:"kind"`
	Channel      string            `json:"channel"`
	ChannelType  string            `json:"channel_type,omitempty"`
	StorageType  string            `json:"storage_type,omitempty"`
	EventType    string            `json:"event_type,omitempty"`
	Publisher    string            `json:"publisher,omitempty"`
	Items        []EnvelopeItem    `json:"items,omitempty"`
	States       map[string]string `json:"states,omitempty"`
	Snapshot     []EnvelopeUser    `json:"snapshot,omitempty"`
	PresenceType string            `json:"presence_type,omitempty"`
	MessageType  string            `json:"message_type,omitempty"`
	Message      string            `json:"message,omitempty"`
	Payload      []byte            `json:"payload,omitempty"`
	State        string            `json:"state,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

type EnvelopeItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type EnvelopeUser struct {
	UserID string            `json:"user_id"`
	States map[string]string `json:"states,omitempty"`
}

// Codec maps events to <prefix>/<kind>/<channel> topics and JSON envelopes.
type Codec struct {
	Prefix string
}

func NewCodec(prefix string) Codec {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Codec{Prefix: prefix}
}

// Filter is the subscription filter covering every relayed event.
func (c Codec) Filter() string {
	return c.Prefix + "/#"
}

func (c Codec) Topic(kind rtm.Kind, channel string) string {
	if channel == "" {
		return c.Prefix + "/" + kind.String()
	}
	return c.Prefix + "/" + kind.String() + "/" + channel
}

// Encode renders ev as a topic and payload.
func (c Codec) Encode(ev rtm.Event) (string, []byte, error) {
	env, err := EncodeEvent(ev)
	if err != nil {
		return "", nil, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", nil, err
	}
	return c.Topic(ev.Kind(), ev.Channel()), payload, nil
}

// Decode parses payload received on topic. The topic fills in kind and channel
// when the envelope leaves them out.
func (c Codec) Decode(topic string, payload []byte) (rtm.Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	kind, channel := c.split(topic)
	if env.Kind == "" {
		env.Kind = kind
	}
	if env.Channel == "" {
		env.Channel = channel
	}
	return DecodeEnvelope(env)
}

func (c Codec) split(topic string) (kind, channel string) {
	rest, ok := strings.CutPrefix(topic, c.Prefix+"/")
	if !ok {
		return "", ""
	}
	kind, channel, _ = strings.Cut(rest, "/")
	return kind, channel
}

func EncodeEvent(ev rtm.Event) (Envelope, error) {
	switch e := ev.(type) {
	case *rtm.StorageEvent:
		return EncodeEvent(*e)
	case *rtm.PresenceEvent:
		return EncodeEvent(*e)
	case *rtm.MessageEvent:
		return EncodeEvent(*e)
	case *rtm.ConnectionStateEvent:
		return EncodeEvent(*e)
	case *rtm.TokenExpiryEvent:
		return EncodeEvent(*e)

	case rtm.StorageEvent:
		items := make([]EnvelopeItem, 0, len(e.Items))
		for _, it := range e.Items {
			items = append(items, EnvelopeItem{Key: it.Key, Value: it.Value})
		}
		return Envelope{
			Kind:        rtm.KindStorage.String(),
			Channel:     e.Target,
			ChannelType: e.ChannelType.String(),
			StorageType: e.StorageType.String(),
			EventType:   e.EventType.String(),
			Publisher:   e.Publisher,
			Items:       items,
		}, nil
	case rtm.PresenceEvent:
		env := Envelope{
			Kind:         rtm.KindPresence.String(),
			Channel:      e.ChannelName,
			ChannelType:  e.ChannelType.String(),
			PresenceType: e.Type.String(),
			Publisher:    e.Publisher,
			States:       e.States,
		}
		for _, u := range e.Snapshot {
			env.Snapshot = append(env.Snapshot, EnvelopeUser{UserID: u.UserID, States: u.States})
		}
		return env, nil
	case rtm.MessageEvent:
		env := Envelope{
			Kind:        rtm.KindMessage.String(),
			Channel:     e.ChannelName,
			ChannelType: e.ChannelType.String(),
			MessageType: e.MessageType.String(),
			Publisher:   e.Publisher,
		}
		if e.MessageType == rtm.MessageTypeString {
			env.Message = string(e.Payload)
		} else {
			env.Payload = e.Payload
		}
		return env, nil
	case rtm.ConnectionStateEvent:
		return Envelope{
			Kind:    rtm.KindConnectionState.String(),
			Channel: e.ChannelName,
			State:   e.State.String(),
			Reason:  e.Reason,
		}, nil
	case rtm.TokenExpiryEvent:
		return Envelope{Kind: rtm.KindTokenExpiry.String(), Channel: e.ChannelName}, nil
	}
	return Envelope{}, fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
}

func DecodeEnvelope(env Envelope) (rtm.Event, error) {
	kind, err := rtm.ParseKind(env.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	d := decoder{}
	switch kind {
	case rtm.KindStorage:
		ev := rtm.StorageEvent{
			Target:      env.Channel,
			ChannelType: enum(&d, env.ChannelType, rtm.ParseChannelType),
			StorageType: enum(&d, env.StorageType, rtm.ParseStorageType),
			EventType:   enum(&d, env.EventType, rtm.ParseStorageEventType),
			Publisher:   env.Publisher,
		}
		for _, it := range env.Items {
			ev.Items = append(ev.Items, rtm.StorageItem{Key: it.Key, Value: it.Value})
		}
		return ev, d.err
	case rtm.KindPresence:
		ev := rtm.PresenceEvent{
			ChannelName: env.Channel,
			ChannelType: enum(&d, env.ChannelType, rtm.ParseChannelType),
			Type:        enum(&d, env.PresenceType, rtm.ParsePresenceType),
			Publisher:   env.Publisher,
			States:      env.States,
		}
		for _, u := range env.Snapshot {
			ev.Snapshot = append(ev.Snapshot, rtm.UserState{UserID: u.UserID, States: u.States})
		}
		return ev, d.err
	case rtm.KindMessage:
		ev := rtm.MessageEvent{
			ChannelName: env.Channel,
			ChannelType: enum(&d, env.ChannelType, rtm.ParseChannelType),
			MessageType: rtm.MessageTypeString,
			Publisher:   env.Publisher,
			Payload:     []byte(env.Message),
		}
		if env.MessageType != "" {
			ev.MessageType = enum(&d, env.MessageType, rtm.ParseMessageType)
		}
		if ev.MessageType != rtm.MessageTypeString {
			ev.Payload = env.Payload
		}
		return ev, d.err
	case rtm.KindConnectionState:
		return rtm.ConnectionStateEvent{
			ChannelName: env.Channel,
			State:       enum(&d, env.State, rtm.ParseConnectionState),
			Reason:      env.Reason,
		}, d.err
	case rtm.KindTokenExpiry:
		return rtm.TokenExpiryEvent{ChannelName: env.Channel}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrMalformedEnvelope, env.Kind)
}

type decoder struct {
	err error
}

// enum parses a non-empty name, recording the first failure in d.
func enum[T any](d *decoder, name string, parse func(string) (T, error)) T {
	var zero T
	if name == "" || d.err != nil {
		return zero
	}
	v, err := parse(name)
	if err != nil {
		d.err = fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		return zero
	}
	return v
}
