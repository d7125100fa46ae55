// Package idempotency сохраняет ответы на запросы с заголовком Idempotency-Key
// и повторяет их при повторной отправке того же ключа.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record - сохраненный ответ.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Store - хранилище сохраненных ответов.
type Store interface {
	Get(ctx context.Context, key string) (*Record, bool, error)
	Save(ctx context.Context, key string, record Record) error
}

// Key собирает ключ записи: idem:{actor}:{endpoint}:{key}.
func Key(actorID, endpoint, idempotencyKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s", actorID, endpoint, idempotencyKey)
}

// RedisStore хранит ответы в Redis с ограниченным сроком жизни.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore подключается к Redis и проверяет соединение.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: rdb, ttl: ttl}, nil
}

// Get возвращает сохраненный ответ, если он есть.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency record %s: %w", key, err)
	}
	return &record, true, nil
}

// Save сохраняет ответ. Уже существующая запись не перезаписывается.
func (s *RedisStore) Save(ctx context.Context, key string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.client.SetNX(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
