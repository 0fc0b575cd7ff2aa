// Package cache keeps the latest ride snapshot in Redis so reads never touch the tracker loop.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/config"
	"ride-tracker/internal/general/logger"
)

var ErrSnapshotNotFound = errors.New("ride snapshot not cached")

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"addr": cfg.Redis.Addr,
		"db":   cfg.Redis.DB,
	})
	return client, nil
}

// SnapshotCache stores one JSON snapshot per ride under ride:{id}:snapshot.
// It satisfies tracking.StatusSink.
type SnapshotCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewSnapshotCache wraps a Redis client; ttl <= 0 keeps entries forever.
func NewSnapshotCache(rdb redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(rideID string) string {
	return "ride:" + rideID + ":snapshot"
}

// Update implements tracking.StatusSink.
func (cache *SnapshotCache) Update(ctx context.Context, snapshot ride.Snapshot) error {
	return cache.Put(ctx, snapshot)
}

// Put overwrites the cached snapshot of a ride.
func (cache *SnapshotCache) Put(ctx context.Context, snapshot ride.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ttl := cache.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := cache.rdb.Set(ctx, snapshotKey(snapshot.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot of rideID.
func (cache *SnapshotCache) Get(ctx context.Context, rideID string) (ride.Snapshot, error) {
	data, err := cache.rdb.Get(ctx, snapshotKey(rideID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ride.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return ride.Snapshot{}, fmt.Errorf("read cached snapshot: %w", err)
	}

	var snapshot ride.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return ride.Snapshot{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snapshot, nil
}

// Delete drops the cached snapshot of rideID.
func (cache *SnapshotCache) Delete(ctx context.Context, rideID string) error {
	return cache.rdb.Del(ctx, snapshotKey(rideID)).Err()
}
