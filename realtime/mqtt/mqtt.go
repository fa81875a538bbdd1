package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
)

// Broker is a pub/sub endpoint the relay can both read from and write to.
type Broker interface {
	Publisher
	Subscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Publisher interface {
	Publish(topic string, payload []byte, retain bool, qos byte) error
}

type Subscriber interface {
	Subscribe(filter string, subscriptionID int, handler mqtt.InlineSubFn) error
	Unsubscribe(filter string, subscriptionID int) error
}

const (
	NoRetain = false
	Retain   = true
)

const (
	QoS0 byte = 0
	QoS1 byte = 1
	QoS2 byte = 2
)

// Server is the in-process broker. Its inline client lets the relay subscribe
// without a network hop.
type Server struct {
	*mqtt.Server
	log *zap.Logger
}

var _ Broker = (*Server)(nil)

func NewServer(log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mqtt.server")
	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       NewSlog(log),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("realtime/mqtt: add allow hook: %w", err)
	}
	return &Server{Server: server, log: log}, nil
}

// NewSlog routes the broker's slog output into log at the level log enables.
func NewSlog(log *zap.Logger) *slog.Logger {
	handler := slogzap.Option{Level: slogLevel(log), Logger: log}.NewZapHandler()
	return slog.New(handler)
}

func slogLevel(log *zap.Logger) slog.Level {
	core := log.Core()
	switch {
	case core.Enabled(zap.DebugLevel):
		return slog.LevelDebug
	case core.Enabled(zap.InfoLevel):
		return slog.LevelInfo
	case core.Enabled(zap.WarnLevel):
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ListenTCP exposes the broker on a TCP address.
func (s *Server) ListenTCP(id, address string) error {
	if err := s.AddListener(listeners.NewTCP(listeners.Config{ID: id, Address: address})); err != nil {
		return fmt.Errorf("realtime/mqtt: tcp listener %s: %w", id, err)
	}
	s.log.Info("registered listener", zap.String("id", id), zap.String("address", address))
	return nil
}

// Listen attaches any mochi listener, e.g. the fiber websocket one.
func (s *Server) Listen(l listeners.Listener) error {
	if err := s.AddListener(l); err != nil {
		return fmt.Errorf("realtime/mqtt: listener %s: %w", l.ID(), err)
	}
	s.log.Info("registered listener", zap.String("id", l.ID()), zap.String("protocol", l.Protocol()))
	return nil
}

func (s *Server) Publish(topic string, payload []byte, retain bool, qos byte) error {
	return s.Server.Publish(topic, payload, retain, qos)
}

func (s *Server) Start(context.Context) error {
	return s.Server.Serve()
}

func (s *Server) Stop(context.Context) error {
	return s.Server.Close()
}
