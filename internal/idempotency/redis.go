// Package idempotency хранит ключи идемпотентности денежных операций в Redis.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "frontdesk:idempotency"

type cmdable interface {
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore — хранилище записей идемпотентности.
type RedisStore struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisStore подключается к Redis по URL и проверяет соединение.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw}, nil
}

// Key возвращает ключ в пространстве имён сервиса.
func (s *RedisStore) Key(scope, id string) string {
	return keyNamespace + ":" + scope + ":" + id
}

// Get возвращает значение ключа. found == false, если ключа нет.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Claim атомарно занимает ключ. Возвращает false, если ключ уже занят.
func (s *RedisStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.store.SetNX(ctx, key, value, ttl).Result()
}

// Put перезаписывает значение ключа.
func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl).Err()
}

// Release освобождает ключ, чтобы запрос можно было повторить с тем же ключом.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.store.Del(ctx, key).Err()
}

// Close закрывает соединение с Redis.
func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}
