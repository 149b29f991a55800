package favorites

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultKey = "coinwatch:favorites"

// RedisStore persists favorites as a Redis set, so the watchlist survives
// restarts.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	symbols, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return symbols, nil
}

func (s *RedisStore) Save(ctx context.Context, symbols []string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(symbols) > 0 {
		members := make([]interface{}, len(symbols))
		for i, sym := range symbols {
			members[i] = sym
		}
		pipe.SAdd(ctx, s.key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	log.Debug().Int("count", len(symbols)).Msg("favorites saved to redis")
	return nil
}
