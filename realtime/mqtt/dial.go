package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var ErrInvalidMessage = errors.New("realtime/mqtt: websocket message is not binary")

// dial opens a transport to endpoint. Accepted forms are host:port and
// tcp://, mqtt://, tls://, ssl://, mqtts://, ws:// and wss:// URLs.
func dial(ctx context.Context, endpoint string, timeout time.Duration, tlsCfg *tls.Config) (net.Conn, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "tcp://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("realtime/mqtt: parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		d := &net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "tcp", u.Host)
	case "tls", "ssl", "mqtts":
		d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: tlsCfg}
		return d.DialContext(ctx, "tcp", u.Host)
	case "ws", "wss":
		d := websocket.Dialer{
			HandshakeTimeout: timeout,
			Subprotocols:     []string{"mqtt"},
			TLSClientConfig:  tlsCfg,
		}
		c, _, err := d.DialContext(ctx, u.String(), http.Header{})
		if err != nil {
			return nil, err
		}
		return NewWebsocketConn(c), nil
	default:
		return nil, fmt.Errorf("realtime/mqtt: unsupported endpoint scheme %q", u.Scheme)
	}
}

// WebsocketConn carries an MQTT byte stream over binary websocket frames.
type WebsocketConn struct {
	c *websocket.Conn
	r io.Reader
}

var _ net.Conn = (*WebsocketConn)(nil)

func NewWebsocketConn(c *websocket.Conn) *WebsocketConn {
	return &WebsocketConn{c: c}
}

// Read spans frame boundaries: a frame that ends mid-buffer returns what was
// read so far and the next call starts the following frame.
func (ws *WebsocketConn) Read(p []byte) (int, error) {
	if ws.r == nil {
		op, r, err := ws.c.NextReader()
		if err != nil {
			return 0, err
		}
		if op != websocket.BinaryMessage {
			return 0, ErrInvalidMessage
		}
		ws.r = r
	}

	n := 0
	for n < len(p) {
		m, err := ws.r.Read(p[n:])
		n += m
		if err != nil {
			ws.r = nil
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return n, err
		}
	}
	return n, nil
}

func (ws *WebsocketConn) Write(p []byte) (int, error) {
	if err := ws.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (ws *WebsocketConn) Close() error         { return ws.c.Close() }
func (ws *WebsocketConn) LocalAddr() net.Addr  { return ws.c.LocalAddr() }
func (ws *WebsocketConn) RemoteAddr() net.Addr { return ws.c.RemoteAddr() }

func (ws *WebsocketConn) SetDeadline(t time.Time) error {
	if err := ws.c.SetReadDeadline(t); err != nil {
		return err
	}
	return ws.c.SetWriteDeadline(t)
}

func (ws *WebsocketConn) SetReadDeadline(t time.Time) error  { return ws.c.SetReadDeadline(t) }
func (ws *WebsocketConn) SetWriteDeadline(t time.Time) error { return ws.c.SetWriteDeadline(t) }
