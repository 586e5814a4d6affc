// Package cache provides the once-only guard used to send each urgency
// notification a single time across service instances.
package cache

import (
	"context"
	"fmt"
	"time"

	"group-shipment-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "group-shipment:"

// RedisGuard claims keys with SET NX so the first instance wins.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(ctx context.Context, cfg models.RedisConfig) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	zap.L().Info("Redis guard connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &RedisGuard{client: client}, nil
}

// Once reports true if this call set the key. The key expires after ttl.
func (g *RedisGuard) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ok, err := g.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Marker records a key once in durable storage.
type Marker interface {
	MarkNotified(ctx context.Context, key string, now time.Time) (bool, error)
}

// StoreGuard claims keys through the database when Redis is not configured.
// Marks never expire.
type StoreGuard struct {
	marker Marker
	now    func() time.Time
}

func NewStoreGuard(marker Marker) *StoreGuard {
	return &StoreGuard{marker: marker, now: time.Now}
}

func (g *StoreGuard) Once(ctx context.Context, key string, _ time.Duration) (bool, error) {
	return g.marker.MarkNotified(ctx, key, g.now())
}
