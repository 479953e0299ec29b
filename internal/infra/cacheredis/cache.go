// Package cacheredis backs the verification cache with Redis so multiple
// notaryd replicas share memoized results.
package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notary/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
}

func New(addr, password string, db int) (domain.VerificationCache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCache{client: client}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (*domain.VerificationRecord, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var record domain.VerificationRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &record, nil
}

func (r *redisCache) Put(ctx context.Context, key string, record domain.VerificationRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
