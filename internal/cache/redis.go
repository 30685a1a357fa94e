package cache

import (
	"context"
	"time"

	"github.com/klauspost/compress/s2"
	"github.com/pingcap/failpoint"
	"github.com/redis/go-redis/v9"
)

// RedisTier is an optional distributed result store: Get, Set and Delete
// work on Redis keys under Prefix. QueryCache never consults it, and
// tql.Engine only holds one (see tql.WithRedisTier) without reading or
// writing it; a caller that wants a Redis tier calls these methods itself.
// Payloads are s2-compressed; callers own serialization (typically
// encoding/gob on their own result type) so this tier never needs to
// know the result's concrete shape.
type RedisTier struct {
	Client *redis.Client
	Prefix string
}

func NewRedisTier(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{Client: client, Prefix: prefix}
}

func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	failpoint.Inject("redisTierGetError", func(val failpoint.Value) {
		failpoint.Return(nil, false, redisFailpointError(val))
	})
	compressed, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	decoded, err := s2.Decode(nil, compressed)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	compressed := s2.Encode(nil, data)
	return r.Client.Set(ctx, r.Prefix+key, compressed, ttl).Err()
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, r.Prefix+key).Err()
}

// redisFailpointError turns a failpoint value into an error so tests can
// simulate a Redis outage (timeout, connection refused) without a real
// broken server, by enabling the "redisTierGetError" failpoint.
func redisFailpointError(val failpoint.Value) error {
	if s, ok := val.(string); ok {
		return errRedisSimulated(s)
	}
	return errRedisSimulated("simulated redis failure")
}

type errRedisSimulated string

func (e errRedisSimulated) Error() string { return string(e) }
