package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// admitScript implements the fixed-window admit check atomically on the
// Redis side, so concurrent gateway instances cannot overshoot the limit.
// KEYS[1] window key, ARGV[1] limit, ARGV[2] window in milliseconds.
// Returns {allowed, count, pttl}.
var admitScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return {0, count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// Redis is a Store backed by a shared Redis instance. Use it when the
// gateway runs behind multiple processes and the quota must hold globally
// instead of per instance.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedis creates a Redis store using the given client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, keyPrefix: "aicore:ratelimit:"}
}

func (r *Redis) key(callerID string) string {
	return r.keyPrefix + callerID
}

// Admit decides whether callerID may make one more call under p.
func (r *Redis) Admit(ctx context.Context, callerID string, p Policy) (Decision, error) {
	res, err := admitScript.Run(ctx, r.client, []string{r.key(callerID)},
		p.Limit, p.Window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis admit: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected redis reply: %v", res)
	}
	allowed := vals[0].(int64) == 1
	count := int(vals[1].(int64))
	pttl := vals[2].(int64)

	d := Decision{Allowed: allowed, Remaining: p.Limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if pttl > 0 {
		d.ResetAt = time.Now().Add(time.Duration(pttl) * time.Millisecond)
	}
	return d, nil
}

// Status reports callerID's quota without consuming a slot.
func (r *Redis) Status(ctx context.Context, callerID string, p Policy) (Status, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, r.key(callerID))
	ttlCmd := pipe.PTTL(ctx, r.key(callerID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Status{}, fmt.Errorf("ratelimit: redis status: %w", err)
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return Status{Limit: p.Limit, Remaining: p.Limit}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: redis status: %w", err)
	}

	s := Status{Limit: p.Limit, Remaining: p.Limit - count}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if pttl := ttlCmd.Val(); pttl > 0 {
		s.ResetAt = time.Now().Add(pttl)
	}
	return s, nil
}

// Reset drops callerID's window unconditionally.
func (r *Redis) Reset(ctx context.Context, callerID string) error {
	if err := r.client.Del(ctx, r.key(callerID)).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}
