package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TransferCache implements ports.TransferCache using Redis. It backs
// refid replay protection on transfer creation.
type TransferCache struct {
	client *goredis.Client
	prefix string
}

func NewTransferCache(client *goredis.Client) *TransferCache {
	return &TransferCache{
		client: client,
		prefix: "transfer:refid:",
	}
}

// Get retrieves a recorded transfer payload by replay key.
// Returns nil, nil if the key does not exist.
func (c *TransferCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transfer get: %w", err)
	}
	return val, nil
}

// Set records a transfer payload under its replay key with TTL.
func (c *TransferCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis transfer set: %w", err)
	}
	return nil
}
