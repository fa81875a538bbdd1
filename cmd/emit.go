package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/apex-wang/AUIKit/realtime"
	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultEmitBroker = "tcp://127.0.0.1:1883"

// EmitCommand publishes one raw messaging event to a running relay's broker.
type EmitCommand struct {
	log *zap.Logger
}

func NewEmitCommand(log *zap.Logger) *EmitCommand {
	return &EmitCommand{log: log}
}

// EmitOptions holds the emit flags.
type EmitOptions struct {
	Broker       string
	Prefix       string
	Kind         string
	Channel      string
	ChannelType  string
	Publisher    string
	Items        []string
	States       []string
	PresenceType string
	Message      string
	State        string
	Reason       string
	Retain       bool
	Timeout      time.Duration
}

func (s *EmitCommand) Command() *cobra.Command {
	var opts EmitOptions
	c := &cobra.Command{
		Use:   "emit",
		Short: "Publish a storage, presence, message or connection event to the relay",
		Example: `  auikitd emit --kind storage --channel room1 --item 'song=[{"songCode":"1"}]'
  auikitd emit --kind presence --channel room1 --user u2 --presence-type join --state userName=bob
  auikitd emit --kind message --channel room1 --message hello`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.Run(cmd, opts)
		},
	}

	f := c.Flags()
	f.StringVar(&opts.Broker, "broker", defaultEmitBroker, "broker endpoint (tcp://, tls://, ws://)")
	f.StringVar(&opts.Prefix, "prefix", realtime.DefaultPrefix, "relay topic prefix")
	f.StringVar(&opts.Kind, "kind", rtm.KindStorage.String(), "event kind: storage, presence, message, connection, token")
	f.StringVar(&opts.Channel, "channel", "", "target channel")
	f.StringVar(&opts.ChannelType, "channel-type", rtm.ChannelTypeStream.String(), "channel type: none, message, stream, user")
	f.StringVar(&opts.Publisher, "user", "", "publishing user id")
	f.StringArrayVar(&opts.Items, "item", nil, "storage item key=value (repeatable)")
	f.StringArrayVar(&opts.States, "state", nil, "presence state key=value (repeatable)")
	f.StringVar(&opts.PresenceType, "presence-type", rtm.PresenceRemoteJoin.String(), "presence type: join, leave, timeout, update")
	f.StringVar(&opts.Message, "message", "", "text message body")
	f.StringVar(&opts.State, "connection-state", rtm.ConnectionConnected.String(), "connection state for --kind connection")
	f.StringVar(&opts.Reason, "reason", "", "connection state change reason")
	f.BoolVar(&opts.Retain, "retain", false, "publish with the retain flag")
	f.DurationVar(&opts.Timeout, "timeout", 5*time.Second, "connect timeout")
	return c
}

func (s *EmitCommand) Run(cmd *cobra.Command, opts EmitOptions) error {
	ev, err := BuildEvent(opts)
	if err != nil {
		return err
	}
	topic, payload, err := realtime.NewCodec(opts.Prefix).Encode(ev)
	if err != nil {
		return err
	}

	remote, err := usmqtt.NewRemote(usmqtt.RemoteConfig{
		Endpoint:       opts.Broker,
		ClientID:       realtime.DefaultClientID(),
		CleanSession:   true,
		ConnectTimeout: opts.Timeout,
		Logger:         s.log,
	})
	if err != nil {
		return err
	}
	if err := remote.Start(cmd.Context()); err != nil {
		return fmt.Errorf("connect %s: %w", opts.Broker, err)
	}
	defer func() {
		_ = remote.Stop(cmd.Context())
	}()

	if err := remote.Publish(topic, payload, opts.Retain, 0); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s (%d bytes)\n", topic, len(payload))
	return err
}

// BuildEvent turns emit flags into the event they describe.
func BuildEvent(opts EmitOptions) (rtm.Event, error) {
	kind, err := rtm.ParseKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	channelType, err := rtm.ParseChannelType(opts.ChannelType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case rtm.KindStorage:
		items, err := parsePairs(opts.Items)
		if err != nil {
			return nil, err
		}
		ev := rtm.StorageEvent{
			Target:      opts.Channel,
			ChannelType: channelType,
			StorageType: rtm.StorageTypeChannel,
			EventType:   rtm.StorageEventUpdate,
			Publisher:   opts.Publisher,
		}
		for _, kv := range items {
			ev.Items = append(ev.Items, rtm.StorageItem{Key: kv[0], Value: kv[1]})
		}
		return ev, nil
	case rtm.KindPresence:
		presence, err := rtm.ParsePresenceType(opts.PresenceType)
		if err != nil {
			return nil, err
		}
		pairs, err := parsePairs(opts.States)
		if err != nil {
			return nil, err
		}
		states := make(map[string]string, len(pairs))
		for _, kv := range pairs {
			states[kv[0]] = kv[1]
		}
		return rtm.PresenceEvent{
			ChannelName: opts.Channel,
			ChannelType: channelType,
			Type:        presence,
			Publisher:   opts.Publisher,
			States:      states,
		}, nil
	case rtm.KindMessage:
		return rtm.MessageEvent{
			ChannelName: opts.Channel,
			ChannelType: channelType,
			MessageType: rtm.MessageTypeString,
			Publisher:   opts.Publisher,
			Payload:     []byte(opts.Message),
		}, nil
	case rtm.KindConnectionState:
		state, err := rtm.ParseConnectionState(opts.State)
		if err != nil {
			return nil, err
		}
		return rtm.ConnectionStateEvent{ChannelName: opts.Channel, State: state, Reason: opts.Reason}, nil
	case rtm.KindTokenExpiry:
		return rtm.TokenExpiryEvent{ChannelName: opts.Channel}, nil
	}
	return nil, fmt.Errorf("cannot emit %s events", kind)
}

func parsePairs(in []string) ([][2]string, error) {
	out := make([][2]string, 0, len(in))
	for _, raw := range in {
		k, v, ok := strings.Cut(raw, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", raw)
		}
		out = append(out, [2]string{k, v})
	}
	return out, nil
}
