package rd

import (
	"context"
	"fmt"
	"time"

	"github.com/apex-wang/AUIKit/rtm"
	redis "github.com/redis/go-redis/v9"
)

// checkAndSet stores ARGV[2] under field ARGV[1] of KEYS[1] unless it already
// holds that exact value. Returns 1 when the value changed.
var checkAndSet = redis.NewScript(`
local prev = redis.call("HGET", KEYS[1], ARGV[1])
if prev == ARGV[2] then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`)

// ChangeCache keeps the last value per (target, key) in one Redis hash per
// target, so several relay processes share dedup state.
type ChangeCache struct {
	client Client
	prefix string
	ttl    time.Duration
}

var _ rtm.ChangeCache = (*ChangeCache)(nil)

// Client is the subset of the redis client the cache needs.
type Client interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewChangeCache(client Client, cfg Config) *ChangeCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "auikit:cache"
	}
	return &ChangeCache{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (c *ChangeCache) CheckAndUpdate(ctx context.Context, target, key, value string) (bool, error) {
	n, err := checkAndSet.Run(ctx, c.client, []string{c.Key(target)}, key, value, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rd: check and update %s/%s: %w", target, key, err)
	}
	return n == 1, nil
}

func (c *ChangeCache) Clear(ctx context.Context, target string) error {
	if err := c.client.Del(ctx, c.Key(target)).Err(); err != nil {
		return fmt.Errorf("rd: clear %s: %w", target, err)
	}
	return nil
}

// Key returns the hash holding target's cached items.
func (c *ChangeCache) Key(target string) string {
	return c.prefix + ":" + target
}
