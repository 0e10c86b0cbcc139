package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisInvalidator fans out to a key-value cache by deleting every key
// matching the tenant id and, if supplied, the slug — mirroring the
// wildcard-delete shape of the source's disabled
// delete_keys_from_redis(f"*{company_id}*") call.
type RedisInvalidator struct {
	Client *redis.Client
}

// NewRedisInvalidator wraps an already-configured client. Connection
// lifecycle (address, credentials, pool size) belongs to the caller,
// the same way store/sqlite.New takes an already-chosen DSN.
func NewRedisInvalidator(client *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{Client: client}
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, tenantID, slug string) error {
	keys, err := r.matchingKeys(ctx, "*"+tenantID+"*")
	if err != nil {
		return err
	}
	if slug != "" {
		slugKeys, err := r.matchingKeys(ctx, "*"+slug+"*")
		if err != nil {
			return err
		}
		keys = append(keys, slugKeys...)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

func (r *RedisInvalidator) matchingKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
