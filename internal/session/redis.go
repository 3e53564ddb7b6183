package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

const batchKeyPrefix = "marklens:batch:"

// RedisStore shares session outcomes across replicas. Entries carry the
// session TTL so Redis evicts them on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg common.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	logger.Info("session.redis.connected", "addr", cfg.Addr, "ttl", ttl)
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func batchKey(batchID uuid.UUID) string {
	return batchKeyPrefix + batchID.String()
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, outcome *entity.BatchOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	// NX keeps the write-once contract: a second Put for the same batch is
	// rejected rather than silently overwriting.
	ok, err := s.client.SetNX(ctx, batchKey(outcome.BatchID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set batch %s: %w", outcome.BatchID, err)
	}
	if !ok {
		return fmt.Errorf("batch %s already stored: %w", outcome.BatchID, common.ErrInvalidInput)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, batchID uuid.UUID) (*entity.BatchOutcome, error) {
	payload, err := s.client.Get(ctx, batchKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get batch %s: %w", batchID, err)
	}
	var outcome entity.BatchOutcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return nil, fmt.Errorf("decode outcome %s: %w", batchID, err)
	}
	return &outcome, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
