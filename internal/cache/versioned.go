package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// setIfVersionScript writes KEYS[1] only while KEYS[2] still holds ARGV[1].
// A missing version key counts as "0".
var setIfVersionScript = redis.NewScript(`
local v = redis.call("GET", KEYS[2]) or "0"
if v ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// Version returns the counter stored at versionKey, 0 when unset.
func (c *Cache) Version(ctx context.Context, versionKey string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetIfVersion stores value under key only if versionKey still reads version.
// Readers take the version before querying the store, so a result computed
// before a Bump is never written back over the invalidation.
func (c *Cache) SetIfVersion(ctx context.Context, key, versionKey string, version int64, value any) (bool, error) {
	if c == nil {
		return false, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	stored, err := setIfVersionScript.Run(ctx, c.rdb, []string{key, versionKey},
		strconv.FormatInt(version, 10), b, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Bump advances versionKey and drops keys in one MULTI/EXEC.
func (c *Cache) Bump(ctx context.Context, versionKey string, keys ...string) error {
	if c == nil {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}
