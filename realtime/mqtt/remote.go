package mqtt

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
)

var (
	ErrEndpointRequired = errors.New("realtime/mqtt: broker endpoint is required")
	ErrNotConnected     = errors.New("realtime/mqtt: remote broker is not connected")
	ErrNilHandler       = errors.New("realtime/mqtt: subscribe handler is nil")
)

const (
	minRetryDelay = time.Second
	maxRetryDelay = 30 * time.Second
)

type RemoteConfig struct {
	Endpoint       string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	ConnectTimeout time.Duration
	Keepalive      time.Duration
	TLSConfig      *tls.Config
	Logger         *zap.Logger
	// OnStateChange is called from the client's goroutines whenever the
	// session comes up or goes away.
	OnStateChange func(state ConnState, reason string)
}

type ConnState int

const (
	StateConnected ConnState = iota
	StateReconnecting
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("conn_state(%d)", int(s))
	}
}

// Remote is a minimal MQTT 3.1.1 client for an external broker. It keeps its
// subscriptions across connection loss and replays them after reconnecting.
type Remote struct {
	cfg RemoteConfig
	log *zap.Logger
	ids atomic.Uint32

	mu       sync.RWMutex
	sess     *session
	closing  bool
	retrying bool
	stop     chan struct{}
	subs     map[string]map[int]mqtt.InlineSubFn

	writeMu sync.Mutex
}

var _ Broker = (*Remote)(nil)

type session struct {
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "auikit-relay"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Remote{
		cfg:  cfg,
		log:  log.Named("mqtt.remote").With(zap.String("endpoint", cfg.Endpoint), zap.String("client_id", cfg.ClientID)),
		stop: make(chan struct{}),
		subs: make(map[string]map[int]mqtt.InlineSubFn),
	}, nil
}

func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.sess != nil {
		r.mu.Unlock()
		return nil
	}
	if r.closing {
		r.closing = false
		r.stop = make(chan struct{})
	}
	r.mu.Unlock()

	s, err := r.connect(ctx)
	if err != nil {
		return err
	}
	if err := r.attach(s); err != nil {
		r.lost(s, false)
		return err
	}
	r.log.Info("connected to remote broker")
	r.notify(StateConnected, "connected")
	return nil
}

func (r *Remote) Stop(context.Context) error {
	r.mu.Lock()
	if !r.closing {
		r.closing = true
		close(r.stop)
	}
	s := r.sess
	r.sess = nil
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	_ = r.send(s, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Disconnect}})
	s.close()
	r.notify(StateDisconnected, "stopped")
	return nil
}

func (r *Remote) notify(state ConnState, reason string) {
	if r.cfg.OnStateChange != nil {
		r.cfg.OnStateChange(state, reason)
	}
}

// Connected reports whether a session is currently established.
func (r *Remote) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sess != nil
}

func (r *Remote) Publish(topic string, payload []byte, retain bool, qos byte) error {
	s, err := r.current()
	if err != nil {
		return err
	}

	pk := packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Publish, Qos: qos, Retain: retain},
		TopicName:   topic,
		Payload:     payload,
	}
	if qos > 0 {
		pk.PacketID = r.nextID()
	}
	return r.send(s, pk)
}

// Subscribe registers handler for filter. The remote SUBSCRIBE is sent only for
// the first handler of a filter and is deferred until a session exists.
func (r *Remote) Subscribe(filter string, subscriptionID int, handler mqtt.InlineSubFn) error {
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	handlers, ok := r.subs[filter]
	if !ok {
		handlers = make(map[int]mqtt.InlineSubFn)
		r.subs[filter] = handlers
	}
	first := len(handlers) == 0
	handlers[subscriptionID] = handler
	s := r.sess
	r.mu.Unlock()

	if !first || s == nil {
		return nil
	}
	return r.subscribe(s, filter)
}

func (r *Remote) Unsubscribe(filter string, subscriptionID int) error {
	r.mu.Lock()
	handlers, ok := r.subs[filter]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(handlers, subscriptionID)
	last := len(handlers) == 0
	if last {
		delete(r.subs, filter)
	}
	s := r.sess
	r.mu.Unlock()

	if !last || s == nil {
		return nil
	}
	return r.send(s, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Unsubscribe, Qos: 1},
		PacketID:    r.nextID(),
		Filters:     packets.Subscriptions{{Filter: filter}},
	})
}

func (r *Remote) connect(ctx context.Context) (*session, error) {
	conn, err := dial(ctx, r.cfg.Endpoint, r.cfg.ConnectTimeout, r.cfg.TLSConfig)
	if err != nil {
		return nil, err
	}

	b, err := encodePacket(packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Connect},
		Connect: packets.ConnectParams{
			ProtocolName:     []byte("MQTT"),
			Clean:            r.cfg.CleanSession,
			ClientIdentifier: r.cfg.ClientID,
			Keepalive:        uint16(r.cfg.Keepalive / time.Second),
			UsernameFlag:     r.cfg.Username != "",
			PasswordFlag:     r.cfg.Password != "",
			Username:         []byte(r.cfg.Username),
			Password:         []byte(r.cfg.Password),
		},
	})
	if err == nil {
		err = writeWithDeadline(conn, b, r.cfg.ConnectTimeout)
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(r.cfg.ConnectTimeout))
	ack, err := readPacket(reader)
	_ = conn.SetReadDeadline(time.Time{})
	switch {
	case err != nil:
	case ack.FixedHeader.Type != packets.Connack:
		err = fmt.Errorf("realtime/mqtt: expected connack, got packet type %d", ack.FixedHeader.Type)
	case ack.ReasonCode != 0:
		err = fmt.Errorf("realtime/mqtt: connection refused, reason code %d", ack.ReasonCode)
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &session{conn: conn, r: reader, done: make(chan struct{})}, nil
}

// attach makes s the current session, replays subscriptions and starts its
// reader and keepalive loops.
func (r *Remote) attach(s *session) error {
	r.mu.Lock()
	r.sess = s
	filters := make([]string, 0, len(r.subs))
	for f := range r.subs {
		filters = append(filters, f)
	}
	r.mu.Unlock()

	for _, f := range filters {
		if err := r.subscribe(s, f); err != nil {
			return err
		}
	}

	go r.readLoop(s)
	go r.keepalive(s)
	return nil
}

func (r *Remote) readLoop(s *session) {
	for {
		pk, err := readPacket(s.r)
		if err != nil {
			r.lost(s, true)
			return
		}

		switch pk.FixedHeader.Type {
		case packets.Publish:
			r.dispatch(pk)
		case packets.Pingreq:
			_ = r.send(s, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Pingresp}})
		}
	}
}

func (r *Remote) keepalive(s *session) {
	ticker := time.NewTicker(r.cfg.Keepalive / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := r.send(s, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Pingreq}}); err != nil {
				return
			}
		}
	}
}

// lost tears s down. A reconnect loop is started when retry is set, the client
// is not stopping, and no loop is already running.
func (r *Remote) lost(s *session, retry bool) {
	r.mu.Lock()
	if r.sess != nil && r.sess != s {
		r.mu.Unlock()
		s.close()
		return
	}
	r.sess = nil
	spawn := retry && !r.closing && !r.retrying
	if spawn {
		r.retrying = true
	}
	stop := r.stop
	r.mu.Unlock()

	s.close()
	if spawn {
		r.log.Warn("connection to remote broker lost, reconnecting")
		r.notify(StateReconnecting, "connection lost")
		go r.reconnect(stop)
	}
}

func (r *Remote) reconnect(stop <-chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.retrying = false
		r.mu.Unlock()
	}()

	delay := minRetryDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConnectTimeout)
		s, err := r.connect(ctx)
		cancel()
		if err == nil {
			if err = r.attach(s); err == nil {
				r.log.Info("reconnected to remote broker", zap.Int("attempt", attempt))
				r.notify(StateConnected, "reconnected")
				return
			}
			r.lost(s, false)
		}
		r.log.Debug("reconnect attempt failed", zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))

		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func (r *Remote) dispatch(pk packets.Packet) {
	type target struct {
		filter  string
		handler mqtt.InlineSubFn
	}

	r.mu.RLock()
	var targets []target
	for f, handlers := range r.subs {
		if !MatchTopic(f, pk.TopicName) {
			continue
		}
		for _, h := range handlers {
			targets = append(targets, target{filter: f, handler: h})
		}
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	cl := &mqtt.Client{
		ID:         r.cfg.ClientID,
		Properties: mqtt.ClientProperties{Username: []byte(r.cfg.Username)},
	}
	for _, t := range targets {
		t.handler(cl, packets.Subscription{Filter: t.filter}, pk.Copy(false))
	}
}

func (r *Remote) subscribe(s *session, filter string) error {
	return r.send(s, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Subscribe, Qos: 1},
		PacketID:    r.nextID(),
		Filters:     packets.Subscriptions{{Filter: filter, Qos: QoS0}},
	})
}

func (r *Remote) current() (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sess == nil {
		return nil, ErrNotConnected
	}
	return r.sess, nil
}

func (r *Remote) nextID() uint16 {
	for {
		if id := uint16(r.ids.Add(1)); id != 0 {
			return id
		}
	}
}

// send writes pk on s. A failed write other than DISCONNECT drops the session.
func (r *Remote) send(s *session, pk packets.Packet) error {
	b, err := encodePacket(pk)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	err = writeWithDeadline(s.conn, b, r.cfg.ConnectTimeout)
	r.writeMu.Unlock()

	if err != nil && pk.FixedHeader.Type != packets.Disconnect {
		r.lost(s, true)
	}
	return err
}

func writeWithDeadline(conn net.Conn, b []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})
	_, err := conn.Write(b)
	return err
}
