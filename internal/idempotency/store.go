// Package idempotency replays stored checkout responses for reused
// Idempotency-Key headers, so client retries do not create duplicate
// orders.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredResponse is the response to replay for a reused key.
type StoredResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

type Store interface {
	// Get returns the stored response for key, or (nil, nil) when the key
	// has not been seen.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp StoredResponse) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Key scopes an Idempotency-Key header to one user.
func Key(userID, header string) string {
	return fmt.Sprintf("checkout:idem:%s:%s", userID, header)
}

func (s *RedisStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out StoredResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.SetNX(ctx, key, raw, s.ttl).Err()
}
