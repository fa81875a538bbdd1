package rd

import (
	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

// Conn is a Redis client together with the embedded server behind it when
// caching.redis.in_memory is set.
type Conn struct {
	*redis.Client
	embedded *miniredis.Miniredis
}

// NewClient connects to cfg.Addr. With cfg.InMemory it starts a private
// miniredis instead, which Close shuts down with the client.
func NewClient(cfg Config) (*Conn, error) {
	options, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	if !cfg.InMemory {
		return &Conn{Client: redis.NewClient(options)}, nil
	}

	server, err := miniredis.Run()
	if err != nil {
		return nil, err
	}
	options.Addr = server.Addr()
	options.TLSConfig = nil
	return &Conn{Client: redis.NewClient(options), embedded: server}, nil
}

func (c *Conn) Close() error {
	err := c.Client.Close()
	if c.embedded != nil {
		c.embedded.Close()
	}
	return err
}
