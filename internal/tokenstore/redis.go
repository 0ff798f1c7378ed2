package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Connect はURLまたはhost:port形式の指定からRedisクライアントを生成する。
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore はRedisを使用したStore実装。
// キーは "miniwallet:<origin>:<key>" の形式で保存する。有効期限は付けない。
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client redis.Cmdable, origin string) *RedisStore {
	return &RedisStore{client: client, prefix: "miniwallet:" + origin + ":"}
}

// Get は値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get token %s: %w", key, err)
	}
	return v, true, nil
}

// Set は値を保存する。
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set token %s: %w", key, err)
	}
	return nil
}

// Delete は値を削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token %s: %w", key, err)
	}
	return nil
}
