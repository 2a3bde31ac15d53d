// Package cache provides Redis-based caching for quick state reads.
// Match snapshots live here for spectators; the engine stays the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/engine"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values ...interface{}) error
}

// MatchCache provides fast access to match snapshots.
type MatchCache struct {
	client     RedisClient
	expiration time.Duration
}

// NewMatchCache creates a new match cache instance.
func NewMatchCache(client RedisClient) *MatchCache {
	return &MatchCache{
		client:     client,
		expiration: 30 * time.Minute,
	}
}

// SetSnapshot caches the full view of a match.
func (c *MatchCache) SetSnapshot(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal match snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.matchKey(snap.MatchID), data, c.expiration); err != nil {
		return fmt.Errorf("failed to cache match snapshot: %w", err)
	}

	entities := make(map[string]entity.Snapshot, len(snap.Enemies)+1)
	entities[snap.Player.ID] = snap.Player
	for _, en := range snap.Enemies {
		entities[en.ID] = en
	}
	return c.SetEntities(ctx, snap.MatchID, entities)
}

// GetSnapshot retrieves the cached view of a match.
func (c *MatchCache) GetSnapshot(ctx context.Context, matchID string) (*engine.Snapshot, error) {
	data, err := c.client.Get(ctx, c.matchKey(matchID))
	if err != nil {
		return nil, err // Cache miss or error
	}

	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match snapshot: %w", err)
	}
	return &snap, nil
}

// SetEntities caches every ledger of a match in one Redis hash.
func (c *MatchCache) SetEntities(ctx context.Context, matchID string, states map[string]entity.Snapshot) error {
	values := make([]interface{}, 0, len(states)*2)
	for id, state := range states {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal state for %s: %w", id, err)
		}
		values = append(values, id, string(data))
	}
	if len(values) == 0 {
		return nil
	}
	return c.client.HSet(ctx, c.entitiesKey(matchID), values...)
}

// GetEntities retrieves the cached ledgers of a match.
func (c *MatchCache) GetEntities(ctx context.Context, matchID string) (map[string]entity.Snapshot, error) {
	data, err := c.client.HGetAll(ctx, c.entitiesKey(matchID))
	if err != nil {
		return nil, err
	}

	states := make(map[string]entity.Snapshot, len(data))
	for id, jsonStr := range data {
		var state entity.Snapshot
		if err := json.Unmarshal([]byte(jsonStr), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state for %s: %w", id, err)
		}
		states[id] = state
	}
	return states, nil
}

// InvalidateMatch removes all cached state for a match.
func (c *MatchCache) InvalidateMatch(ctx context.Context, matchID string) error {
	return c.client.Del(ctx, c.matchKey(matchID), c.entitiesKey(matchID))
}

func (c *MatchCache) matchKey(matchID string) string {
	return fmt.Sprintf("match:%s:snapshot", matchID)
}

func (c *MatchCache) entitiesKey(matchID string) string {
	return fmt.Sprintf("match:%s:entities", matchID)
}
