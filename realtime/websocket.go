package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	usmqtt "github.com/apex-wang/AUIKit/realtime/mqtt"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Websocket is a mochi listener served by the fiber app, so MQTT-over-websocket
// clients share the HTTP port.
type Websocket struct {
	mu        sync.RWMutex
	id        string
	path      string
	router    fiber.Router
	log       *slog.Logger
	establish listeners.EstablishFn
	upgrader  *websocket.Upgrader
}

var _ listeners.Listener = (*Websocket)(nil)

func NewWebsocket(router fiber.Router, cfg WebsocketListenerConfig) *Websocket {
	id := cfg.ID
	if id == "" {
		id = "ws1"
	}
	path := cfg.Path
	if path == "" {
		path = "/realtime"
	}
	return &Websocket{
		id:     id,
		path:   path,
		router: router,
		upgrader: &websocket.Upgrader{
			Subprotocols: []string{"mqtt"},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
}

func (l *Websocket) ID() string       { return l.id }
func (l *Websocket) Address() string  { return l.path }
func (l *Websocket) Protocol() string { return "ws" }

func (l *Websocket) Init(log *slog.Logger) error {
	l.log = log
	l.router.Get(l.path, adaptor.HTTPHandlerFunc(l.handle))
	return nil
}

func (l *Websocket) handle(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	establish := l.establish
	l.mu.RUnlock()
	if establish == nil {
		http.Error(w, "broker not serving", http.StatusServiceUnavailable)
		return
	}

	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	if err := establish(l.id, usmqtt.NewWebsocketConn(c)); err != nil && l.log != nil {
		l.log.Warn("websocket client closed", "error", err)
	}
}

func (l *Websocket) Serve(establish listeners.EstablishFn) {
	l.mu.Lock()
	l.establish = establish
	l.mu.Unlock()
}

func (l *Websocket) Close(closeClients listeners.CloseFn) {
	l.mu.Lock()
	l.establish = nil
	l.mu.Unlock()

	closeClients(l.id)
}
