package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// memorySessionStorage зберігає сесії провайдера в пам'яті процесу
type memorySessionStorage struct {
	items map[string][]byte
	mutex sync.RWMutex
}

// NewMemorySessionStorage створює in-memory сховище сесій
func NewMemorySessionStorage() SessionStorage {
	return &memorySessionStorage{
		items: make(map[string][]byte),
	}
}

// Load повертає копію збереженої сесії або nil
func (m *memorySessionStorage) Load(_ context.Context, key string) (*models.Session, error) {
	m.mutex.RLock()
	data, exists := m.items[key]
	m.mutex.RUnlock()

	if !exists {
		return nil, nil
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

// Save зберігає копію сесії
func (m *memorySessionStorage) Save(_ context.Context, key string, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	m.mutex.Lock()
	m.items[key] = data
	m.mutex.Unlock()
	return nil
}

// Delete видаляє сесію
func (m *memorySessionStorage) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	delete(m.items, key)
	m.mutex.Unlock()
	return nil
}

const redisSessionPrefix = "videogen:auth:"

// redisSessionStorage зберігає сесії провайдера в Redis
type redisSessionStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStorage створює сховище сесій на Redis
func NewRedisSessionStorage(client *redis.Client, ttl time.Duration) SessionStorage {
	return &redisSessionStorage{
		client: client,
		ttl:    ttl,
	}
}

// Load повертає сесію з Redis або nil якщо ключа немає
func (r *redisSessionStorage) Load(ctx context.Context, key string) (*models.Session, error) {
	data, err := r.client.Get(ctx, redisSessionPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

// Save зберігає сесію з TTL
func (r *redisSessionStorage) Save(ctx context.Context, key string, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisSessionPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Delete видаляє сесію з Redis
func (r *redisSessionStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisSessionPrefix+key).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete session from redis")
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
