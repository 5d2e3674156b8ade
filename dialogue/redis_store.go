package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "trustytail:dialogue:"

// RedisStore shares dialogue state between bot instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(chatID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, chatID)
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (State, error) {
	name, err := r.client.Get(ctx, redisKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return Idle, nil
	}
	if err != nil {
		return Idle, fmt.Errorf("failed to read dialogue state for chat %d: %w", chatID, err)
	}
	return ParseState(name)
}

func (r *RedisStore) Set(ctx context.Context, chatID int64, state State) error {
	var err error
	if state == Idle {
		err = r.client.Del(ctx, redisKey(chatID)).Err()
	} else {
		err = r.client.Set(ctx, redisKey(chatID), state.String(), r.ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to store dialogue state for chat %d: %w", chatID, err)
	}
	return nil
}
