// Package cache fronts hot media-worker state with Redis so the queue
// pipeline's status polls and repeat pitch-reference loads do not hit
// postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kero-live/kero-server/internal/scoring"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache miss")

const (
	statusTTL    = 10 * time.Minute
	referenceTTL = time.Hour
)

type Cache struct {
	rdb *redis.Client
}

// New connects and verifies the server is reachable.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Close() error { return c.rdb.Close() }

func statusKey(songID string) string    { return "processing-status:" + songID }
func referenceKey(songID string) string { return "pitch-reference:" + songID }

// SetStatus records a song's processing status.
func (c *Cache) SetStatus(ctx context.Context, songID, status string) error {
	return c.rdb.Set(ctx, statusKey(songID), status, statusTTL).Err()
}

// Status returns the cached processing status or ErrMiss.
func (c *Cache) Status(ctx context.Context, songID string) (string, error) {
	v, err := c.rdb.Get(ctx, statusKey(songID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetReference caches a song's pitch reference track.
func (c *Cache) SetReference(ctx context.Context, songID string, points []scoring.RefPoint) error {
	raw, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, referenceKey(songID), raw, referenceTTL).Err()
}

// Reference returns the cached pitch track or ErrMiss.
func (c *Cache) Reference(ctx context.Context, songID string) ([]scoring.RefPoint, error) {
	raw, err := c.rdb.Get(ctx, referenceKey(songID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var points []scoring.RefPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Invalidate drops every cached entry for songID.
func (c *Cache) Invalidate(ctx context.Context, songID string) error {
	return c.rdb.Del(ctx, statusKey(songID), referenceKey(songID)).Err()
}
