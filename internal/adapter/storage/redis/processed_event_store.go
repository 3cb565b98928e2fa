package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProcessedEventStore implements ports.ProcessedEventStore with SET NX.
type ProcessedEventStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewProcessedEventStore(client goredis.UniversalClient) *ProcessedEventStore {
	return &ProcessedEventStore{
		client: client,
		prefix: "webhook:",
	}
}

// CheckAndSet claims key for ttl. It returns false if the key is already held.
func (s *ProcessedEventStore) CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event claim: %w", err)
	}
	return result == "OK", nil
}

func (s *ProcessedEventStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis event release: %w", err)
	}
	return nil
}
