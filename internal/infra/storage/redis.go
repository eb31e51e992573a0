package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"assetwatch/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots in Redis, keyed snapshot:<exchange>:<symbol>.
// Useful when several processes share one warm cache.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func snapshotKey(exchange, symbol string) string {
	return fmt.Sprintf("snapshot:%s:%s", exchange, symbol)
}

// Save upserts the latest sample for one exchange+symbol.
func (s *RedisStore) Save(ctx context.Context, update domain.PriceUpdate) error {
	data, err := json.Marshal(update.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := snapshotKey(update.Exchange, update.Data.Symbol)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load returns every stored sample for an exchange.
func (s *RedisStore) Load(ctx context.Context, exchange string) ([]domain.PriceData, error) {
	var (
		out    []domain.PriceData
		cursor uint64
	)
	pattern := fmt.Sprintf("snapshot:%s:*", exchange)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshots: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return nil, err
			}
			var pd domain.PriceData
			if err := json.Unmarshal(raw, &pd); err != nil {
				continue
			}
			out = append(out, pd)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
