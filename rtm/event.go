package rtm

import (
	"fmt"
	"strings"
)

// Kind tags the variants of Event.
type Kind int

const (
	KindUnknown Kind = iota
	KindStorage
	KindPresence
	KindMessage
	KindConnectionState
	KindTokenExpiry
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindStorage:         "storage",
	KindPresence:        "presence",
	KindMessage:         "message",
	KindConnectionState: "connection",
	KindTokenExpiry:     "token",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	return parseEnum(s, kindNames, "kind")
}

// ChannelType is the transport's classification of the channel an event came from.
// Only ChannelTypeStream storage and presence events reach typed subscribers.
type ChannelType int

const (
	ChannelTypeNone ChannelType = iota
	ChannelTypeMessage
	ChannelTypeStream
	ChannelTypeUser
)

var channelTypeNames = map[ChannelType]string{
	ChannelTypeNone:    "none",
	ChannelTypeMessage: "message",
	ChannelTypeStream:  "stream",
	ChannelTypeUser:    "user",
}

func (t ChannelType) String() string {
	if name, ok := channelTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("channel_type(%d)", int(t))
}

func ParseChannelType(s string) (ChannelType, error) {
	return parseEnum(s, channelTypeNames, "channel type")
}

// StorageType distinguishes channel metadata from user metadata.
type StorageType int

const (
	StorageTypeNone StorageType = iota
	StorageTypeUser
	StorageTypeChannel
)

var storageTypeNames = map[StorageType]string{
	StorageTypeNone:    "none",
	StorageTypeUser:    "user",
	StorageTypeChannel: "channel",
}

func (t StorageType) String() string {
	if name, ok := storageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("storage_type(%d)", int(t))
}

func ParseStorageType(s string) (StorageType, error) {
	return parseEnum(s, storageTypeNames, "storage type")
}

type StorageEventType int

const (
	StorageEventNone StorageEventType = iota
	StorageEventSnapshot
	StorageEventSet
	StorageEventUpdate
	StorageEventRemove
)

var storageEventTypeNames = map[StorageEventType]string{
	StorageEventNone:     "none",
	StorageEventSnapshot: "snapshot",
	StorageEventSet:      "set",
	StorageEventUpdate:   "update",
	StorageEventRemove:   "remove",
}

func (t StorageEventType) String() string {
	if name, ok := storageEventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("storage_event(%d)", int(t))
}

func ParseStorageEventType(s string) (StorageEventType, error) {
	return parseEnum(s, storageEventTypeNames, "storage event type")
}

type PresenceType int

const (
	PresenceNone PresenceType = iota
	PresenceSnapshot
	PresenceInterval
	PresenceRemoteJoin
	PresenceRemoteLeave
	PresenceRemoteTimeout
	PresenceRemoteStateChanged
	PresenceErrorOutOfService
)

var presenceTypeNames = map[PresenceType]string{
	PresenceNone:               "none",
	PresenceSnapshot:           "snapshot",
	PresenceInterval:           "interval",
	PresenceRemoteJoin:         "remote_join",
	PresenceRemoteLeave:        "remote_leave",
	PresenceRemoteTimeout:      "remote_timeout",
	PresenceRemoteStateChanged: "remote_state_changed",
	PresenceErrorOutOfService:  "error_out_of_service",
}

func (t PresenceType) String() string {
	if name, ok := presenceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("presence(%d)", int(t))
}

func ParsePresenceType(s string) (PresenceType, error) {
	return parsePresence(s)
}

type MessageType int

const (
	MessageTypeBinary MessageType = iota
	MessageTypeString
)

var messageTypeNames = map[MessageType]string{
	MessageTypeBinary: "binary",
	MessageTypeString: "string",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message_type(%d)", int(t))
}

func ParseMessageType(s string) (MessageType, error) {
	return parseEnum(s, messageTypeNames, "message type")
}

type ConnectionState int

const (
	ConnectionIdle ConnectionState = iota
	ConnectionDisconnected
	ConnectionConnecting
	ConnectionConnected
	ConnectionReconnecting
	ConnectionFailed
)

var connectionStateNames = map[ConnectionState]string{
	ConnectionIdle:         "idle",
	ConnectionDisconnected: "disconnected",
	ConnectionConnecting:   "connecting",
	ConnectionConnected:    "connected",
	ConnectionReconnecting: "reconnecting",
	ConnectionFailed:       "failed",
}

func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("connection_state(%d)", int(s))
}

func ParseConnectionState(s string) (ConnectionState, error) {
	return parseEnum(s, connectionStateNames, "connection state")
}

// Event is one raw notification from the messaging connection. The concrete
// types are StorageEvent, PresenceEvent, MessageEvent, ConnectionStateEvent and
// TokenExpiryEvent.
type Event interface {
	Kind() Kind
	Channel() string
	isEvent()
}

// StorageItem is one key of a metadata update. Value is the serialized JSON
// written by the publisher.
type StorageItem struct {
	Key   string
	Value string
}

type StorageEvent struct {
	Target      string
	ChannelType ChannelType
	StorageType StorageType
	EventType   StorageEventType
	Publisher   string
	Items       []StorageItem
}

func (StorageEvent) Kind() Kind        { return KindStorage }
func (e StorageEvent) Channel() string { return e.Target }
func (StorageEvent) isEvent()          {}

// UserState is one occupant in a presence snapshot.
type UserState struct {
	UserID string            `json:"userId"`
	States map[string]string `json:"states,omitempty"`
}

type PresenceEvent struct {
	ChannelName string
	ChannelType ChannelType
	Type        PresenceType
	Publisher   string
	States      map[string]string
	Snapshot    []UserState
}

func (PresenceEvent) Kind() Kind        { return KindPresence }
func (e PresenceEvent) Channel() string { return e.ChannelName }
func (PresenceEvent) isEvent()          {}

type MessageEvent struct {
	ChannelName string
	ChannelType ChannelType
	MessageType MessageType
	Publisher   string
	Payload     []byte
}

func (MessageEvent) Kind() Kind        { return KindMessage }
func (e MessageEvent) Channel() string { return e.ChannelName }
func (MessageEvent) isEvent()          {}

type ConnectionStateEvent struct {
	ChannelName string
	State       ConnectionState
	Reason      string
}

func (ConnectionStateEvent) Kind() Kind        { return KindConnectionState }
func (e ConnectionStateEvent) Channel() string { return e.ChannelName }
func (ConnectionStateEvent) isEvent()          {}

// TokenExpiryEvent warns that the connection token is about to expire. An empty
// ChannelName applies to the whole connection.
type TokenExpiryEvent struct {
	ChannelName string
}

func (TokenExpiryEvent) Kind() Kind        { return KindTokenExpiry }
func (e TokenExpiryEvent) Channel() string { return e.ChannelName }
func (TokenExpiryEvent) isEvent()          {}

func parseEnum[T comparable](s string, names map[T]string, what string) (T, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == needle {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrUnknownEnum, what, s)
}

func parsePresence(s string) (PresenceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "join", "remote_join_channel":
		return PresenceRemoteJoin, nil
	case "leave", "remote_leave_channel":
		return PresenceRemoteLeave, nil
	case "timeout", "remote_connection_timeout":
		return PresenceRemoteTimeout, nil
	case "update", "remote_state_changed":
		return PresenceRemoteStateChanged, nil
	}
	return parseEnum(s, presenceTypeNames, "presence type")
}
