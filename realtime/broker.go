package realtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/apex-wang/AUIKit/build"
	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	BrokerModeEmbedded = "embedded"
	BrokerModeExternal = "external"
)

// NewBroker returns the embedded server or a remote client depending on
// broker.mode. Listeners of the embedded server are attached separately.
// onState receives session changes of the remote client and may be nil.
func NewBroker(cfg Config, log *zap.Logger, onState func(usmqtt.ConnState, string)) (usmqtt.Broker, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Broker.Mode))
	switch mode {
	case "", BrokerModeEmbedded:
		return usmqtt.NewServer(log)
	case BrokerModeExternal:
		tlsCfg, err := cfg.Broker.TLS.Load()
		if err != nil {
			return nil, err
		}
		clientID := strings.TrimSpace(cfg.Broker.ClientID)
		if clientID == "" {
			clientID = DefaultClientID()
		}
		return usmqtt.NewRemote(usmqtt.RemoteConfig{
			Endpoint:       cfg.Broker.Endpoint,
			ClientID:       clientID,
			Username:       cfg.Broker.Username,
			Password:       cfg.Broker.Password,
			CleanSession:   cfg.Broker.CleanSession,
			ConnectTimeout: cfg.Broker.ConnectTimeout,
			Keepalive:      cfg.Broker.Keepalive,
			TLSConfig:      tlsCfg,
			Logger:         log,
			OnStateChange:  onState,
		})
	}
	return nil, fmt.Errorf("%w %q (allowed: %q, %q)", ErrInvalidBrokerMode, cfg.Broker.Mode, BrokerModeEmbedded, BrokerModeExternal)
}

// ConnectionNotifier turns remote session changes into connection events for
// every connection subscriber of h.
func ConnectionNotifier(h EventHandler) func(usmqtt.ConnState, string) {
	return func(state usmqtt.ConnState, reason string) {
		h.Handle(context.Background(), rtm.ConnectionStateEvent{
			State:  connectionState(state),
			Reason: reason,
		})
	}
}

func connectionState(s usmqtt.ConnState) rtm.ConnectionState {
	switch s {
	case usmqtt.StateConnected:
		return rtm.ConnectionConnected
	case usmqtt.StateReconnecting:
		return rtm.ConnectionReconnecting
	default:
		return rtm.ConnectionDisconnected
	}
}

var invalidClientIDRunes = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// DefaultClientID derives a unique MQTT client id from the binary name.
func DefaultClientID() string {
	base := strings.Trim(invalidClientIDRunes.ReplaceAllString(build.Name, "-"), "-")
	if base == "" {
		base = "auikit"
	}
	return base + "-" + uuid.NewString()
}
