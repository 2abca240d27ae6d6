package core

import (
	"context"
	"fmt"
	"sync"
)

// KVStore is the durable string-keyed storage behind the token store.
// Implementations must be safe for concurrent use.
type KVStore interface {
	// Get returns ("", false, nil) when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes every key in one operation; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// OpenKV opens the backend named by cfg.TokenStore.
// "none" yields a nil store: the token store then behaves as unavailable storage.
func OpenKV(ctx context.Context, cfg Config) (KVStore, error) {
	switch cfg.TokenStore {
	case "", "file":
		return NewFileKV(cfg.TokenFile, cfg.TokenSealKey)
	case "memory":
		return NewMemoryKV(), nil
	case "redis":
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("token store redis: %w", err)
		}
		return NewRedisKV(client, WithRedisPrefix(cfg.RedisPrefix)), nil
	case "postgres":
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("token store postgres: %w", err)
		}
		kv := NewPgKV(pool)
		if err := kv.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("token store postgres schema: %w", err)
		}
		return kv, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// MemoryKV keeps entries in process memory; nothing survives a restart.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }
