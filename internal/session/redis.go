package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LastCaptureKey is the Redis key holding the JSON encoded LastCapture.
const LastCaptureKey = "cardscan:last-capture"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps LastCapture in Redis so it survives restarts.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps the key forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, capture LastCapture) error {
	payload, err := json.Marshal(capture)
	if err != nil {
		return fmt.Errorf("encode last capture: %w", err)
	}
	if err := s.client.Set(ctx, LastCaptureKey, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store last capture: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*LastCapture, error) {
	raw, err := s.client.Get(ctx, LastCaptureKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCapture
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last capture: %w", err)
	}

	var capture LastCapture
	if err := json.Unmarshal(raw, &capture); err != nil {
		return nil, fmt.Errorf("decode last capture: %w", err)
	}
	return &capture, nil
}

var _ Store = (*RedisStore)(nil)
