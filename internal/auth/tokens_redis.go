package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenTable is a TokenStore backed by redis, for deployments that put
// several server replicas behind one load balancer. Expiry rides on redis
// key TTLs, so Put and Get keep the same observable contract as TokenTable.
type RedisTokenTable struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisTokenTable builds a redis-backed table expiring entries after
// timeout. A non-positive timeout falls back to DefaultSessionTimeout.
func NewRedisTokenTable(client *redis.Client, timeout time.Duration) *RedisTokenTable {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &RedisTokenTable{client: client, timeout: timeout}
}

func sessionKey(key string) string {
	return "session:" + key
}

// Put records the mapping under the table's TTL.
func (t *RedisTokenTable) Put(ctx context.Context, key string, token AuthToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("auth: encode token: %w", err)
	}
	if err := t.client.Set(ctx, sessionKey(key), payload, t.timeout).Err(); err != nil {
		return fmt.Errorf("auth: store session: %w", err)
	}
	return nil
}

// Get returns the live token for key.
func (t *RedisTokenTable) Get(ctx context.Context, key string) (AuthToken, error) {
	payload, err := t.client.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return AuthToken{}, ErrSessionExpired
		}
		return AuthToken{}, fmt.Errorf("auth: load session: %w", err)
	}
	var token AuthToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return AuthToken{}, fmt.Errorf("auth: decode session: %w", err)
	}
	return token, nil
}
