package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"road-monitor/internal/config"
	"road-monitor/internal/domain"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Tests use it with
// miniredis.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// UpdateLiveState caches the newest persisted record for a user and
// publishes it on the user's channel, so dashboards that poll redis
// instead of holding a websocket still see a fresh position. Best effort;
// the ingest path logs and continues on failure.
func (r *RedisStore) UpdateLiveState(ctx context.Context, rec domain.PersistedRecord) error {
	stateData := map[string]interface{}{
		"id":         rec.ID,
		"road_state": string(rec.RoadState),
		"user_id":    rec.UserID,
		"latitude":   rec.Latitude,
		"longitude":  rec.Longitude,
		"z":          rec.Z,
		"timestamp":  rec.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal live state: %w", err)
	}

	stateKey := fmt.Sprintf("user:%d:state", rec.UserID)
	pubChannel := fmt.Sprintf("user:%d:records", rec.UserID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 30*time.Second)
	pipe.Publish(ctx, pubChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// GetAPIKey resolves an agent API key to its owner label. Empty string
// with nil error means the key is unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("agent:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
