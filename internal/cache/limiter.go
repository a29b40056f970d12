package cache

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var attemptLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter counts attempts per subject in a fixed window shared by every process
// pointed at the same Redis.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter returns nil when the client is nil or limiting is disabled.
func NewLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "bank:rate_limit"
	}
	return &Limiter{client: client, prefix: p, limit: limit, window: window}
}

// Allow consumes one attempt for scope/subject. It reports whether the attempt
// is within the limit and, if not, how long until the window resets.
func (l *Limiter) Allow(ctx context.Context, scope, subject string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	key, ok := l.key(scope, subject)
	if !ok {
		return true, 0, nil
	}

	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := attemptLimitScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	if int(count) <= l.limit {
		return true, 0, nil
	}
	retry := time.Duration(math.Ceil(float64(ttlMs)/1000.0)) * time.Second
	if retry < time.Second {
		retry = time.Second
	}
	return false, retry, nil
}

// Reset clears the attempt count for scope/subject.
func (l *Limiter) Reset(ctx context.Context, scope, subject string) error {
	if l == nil {
		return nil
	}
	key, ok := l.key(scope, subject)
	if !ok {
		return nil
	}
	return l.client.Del(ctx, key).Err()
}

func (l *Limiter) key(scope, subject string) (string, bool) {
	scope = strings.TrimSpace(scope)
	subject = strings.ToLower(strings.TrimSpace(subject))
	if scope == "" || subject == "" {
		return "", false
	}
	return fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject), true
}
