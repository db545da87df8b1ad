package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLDeliveryStatus = 30 * time.Second // delivery status is re-read often but changes fast
	TTLRecipients     = 10 * time.Minute // chat membership rarely changes
	TTLDefault        = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixDelivery        = "delivery:"
	PrefixRecipients      = "recipients:"
	PrefixPendingDeletion = "deletion:pending:"
)

// Service Redis cache and coordination interface
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Chat recipient-set cache
	GetRecipients(ctx context.Context, chatID string) ([]string, error)
	SetRecipients(ctx context.Context, chatID string, recipients []string) error
	InvalidateRecipients(ctx context.Context, chatID string) error

	// AcquirePendingDeletion claims the pending-deletion slot for a message.
	// Returns true if this caller acquired it, false if a deletion job is
	// already queued elsewhere (SETNX semantics). With no Redis it always
	// returns true and the in-process scheduler dedup is the only guard.
	AcquirePendingDeletion(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	ReleasePendingDeletion(ctx context.Context, messageID string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service backed by the given Redis client
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis not available")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // no Redis, skip caching
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *redisCache) recipientsKey(chatID string) string {
	return PrefixRecipients + chatID
}

func (c *redisCache) GetRecipients(ctx context.Context, chatID string) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis not available")
	}
	var recipients []string
	if err := c.Get(ctx, c.recipientsKey(chatID), &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

func (c *redisCache) SetRecipients(ctx context.Context, chatID string, recipients []string) error {
	return c.Set(ctx, c.recipientsKey(chatID), recipients, TTLRecipients)
}

func (c *redisCache) InvalidateRecipients(ctx context.Context, chatID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.recipientsKey(chatID)).Err()
}

func (c *redisCache) pendingDeletionKey(messageID string) string {
	return PrefixPendingDeletion + messageID
}

func (c *redisCache) AcquirePendingDeletion(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	if c.client == nil {
		return true, nil
	}
	return c.client.SetNX(ctx, c.pendingDeletionKey(messageID), 1, ttl).Result()
}

func (c *redisCache) ReleasePendingDeletion(ctx context.Context, messageID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.pendingDeletionKey(messageID)).Err()
}
