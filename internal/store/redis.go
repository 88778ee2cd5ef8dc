package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// typingTTL bounds how long a typing slot survives a client that died
// mid-compose. The client debounce is the normal clear path.
const typingTTL = 10 * time.Second

// RedisStore handles Redis operations for the ephemeral state of the
// system: typing slots and rate-limit windows.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that shares the
// connection.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// typingKey returns the key for a conversation's typing slot.
func typingKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:typing", conversationID)
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(bucket, caller string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bucket, caller)
}

// SetTyping replaces a conversation's typing slot. Last writer wins;
// the empty string clears the slot.
func (s *RedisStore) SetTyping(ctx context.Context, conversationID uuid.UUID, externalID string) error {
	key := typingKey(conversationID.String())
	if externalID == "" {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, externalID, typingTTL).Err()
}

// GetTyping reads a conversation's typing slot. Empty when nobody is
// composing.
func (s *RedisStore) GetTyping(ctx context.Context, conversationID uuid.UUID) (string, error) {
	val, err := s.client.Get(ctx, typingKey(conversationID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

// CheckRateLimit reports whether a caller is still under the limit for
// a bucket's fixed window.
func (s *RedisStore) CheckRateLimit(ctx context.Context, bucket, caller string, limit int) (bool, error) {
	count, err := s.client.Get(ctx, rateLimitKey(bucket, caller)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return count < limit, nil
}

// IncrementRateLimit increments the caller's counter for a bucket,
// starting the window on first hit.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, bucket, caller string, window time.Duration) error {
	key := rateLimitKey(bucket, caller)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	return err
}
