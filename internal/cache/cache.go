package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buildcamp/progression-engine/internal/models"
)

// RecommendationCache stores ranked mentor lists in Redis so repeated
// recommendation requests for the same participant skip the scoring
// pass. Entries are invalidated whenever mentorship state changes.
type RecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecommendationCache creates a cache backed by the given Redis address
func NewRecommendationCache(address, password string, ttl time.Duration) (*RecommendationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RecommendationCache{client: client, ttl: ttl}, nil
}

func recommendationKey(participantID string) string {
	return fmt.Sprintf("recommendations:%s", participantID)
}

// Get returns the cached ranking for a participant, or nil on a miss.
// Cache failures degrade to a miss rather than surfacing an error.
func (c *RecommendationCache) Get(ctx context.Context, participantID string) []*models.RankedMentor {
	data, err := c.client.Get(ctx, recommendationKey(participantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("recommendation cache read failed", "participant_id", participantID, "error", err)
		}
		return nil
	}

	var ranked []*models.RankedMentor
	if err := json.Unmarshal(data, &ranked); err != nil {
		slog.Warn("recommendation cache entry corrupt", "participant_id", participantID, "error", err)
		return nil
	}

	return ranked
}

// Set stores the ranking for a participant
func (c *RecommendationCache) Set(ctx context.Context, participantID string, ranked []*models.RankedMentor) {
	data, err := json.Marshal(ranked)
	if err != nil {
		slog.Warn("failed to marshal recommendations", "participant_id", participantID, "error", err)
		return
	}

	if err := c.client.Set(ctx, recommendationKey(participantID), data, c.ttl).Err(); err != nil {
		slog.Warn("recommendation cache write failed", "participant_id", participantID, "error", err)
	}
}

// Invalidate drops the cached ranking for a participant
func (c *RecommendationCache) Invalidate(ctx context.Context, participantID string) {
	if err := c.client.Del(ctx, recommendationKey(participantID)).Err(); err != nil {
		slog.Warn("recommendation cache invalidation failed", "participant_id", participantID, "error", err)
	}
}

// InvalidateAll drops every cached ranking. Called when mentor profiles
// change, since any participant's ranking may be stale.
func (c *RecommendationCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, "recommendations:*", 100).Result()
		if err != nil {
			slog.Warn("recommendation cache scan failed", "error", err)
			return
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("failed to delete cached recommendations", "error", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return
		}
	}
}

// HealthCheck verifies Redis connectivity
func (c *RecommendationCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RecommendationCache) Close() error {
	return c.client.Close()
}
