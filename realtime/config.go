package realtime

import (
	"time"

	"github.com/apex-wang/AUIKit/tlsconfig"
)

type Config struct {
	// Prefix roots every relay topic: <prefix>/<kind>/<channel>.
	Prefix            string                  `mapstructure:"prefix" default:"auikit/rtm"`
	Retain            bool                    `mapstructure:"retain" default:"false"`
	HandlerTimeout    time.Duration           `mapstructure:"handler_timeout" default:"5s"`
	Broker            BrokerConfig            `mapstructure:"broker"`
	TCPListener       TCPListenerConfig       `mapstructure:"tcp_listener"`
	WebsocketListener WebsocketListenerConfig `mapstructure:"websocket_listener"`
}

type BrokerConfig struct {
	Mode           string           `mapstructure:"mode" default:"embedded" validate:"oneof=embedded external"`
	Endpoint       string           `mapstructure:"endpoint" validate:"required_if=Mode external"`
	ClientID       string           `mapstructure:"client_id"`
	Username       string           `mapstructure:"username"`
	Password       string           `mapstructure:"password"`
	CleanSession   bool             `mapstructure:"clean_session" default:"true"`
	ConnectTimeout time.Duration    `mapstructure:"connect_timeout" default:"10s"`
	Keepalive      time.Duration    `mapstructure:"keepalive" default:"30s"`
	TLS            tlsconfig.Config `mapstructure:"tls"`
}

type TCPListenerConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	ID      string `mapstructure:"id" default:"t1"`
	Address string `mapstructure:"address" default:":1883"`
}

type WebsocketListenerConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	ID      string `mapstructure:"id" default:"ws1"`
	Path    string `mapstructure:"path" default:"/realtime"`
}
