// Package redisstore is an optional TTL-native Store backend. Advisory TTL
// (§4.1) is a first-class Redis primitive (SET ... EX), which avoids the
// sweeper goroutine the memory backend needs to expire entries.
package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
)

// Store adapts a *redis.Client to storage.Store.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an already-configured *redis.Client. prefix namespaces this
// solver's keys within a shared Redis instance (e.g. "solver:").
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) rkey(key string) string { return s.prefix + key }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.rkey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, solvererr.New(solvererr.KindNotFound, "redis.Get", "key not found: "+key)
		}
		return nil, solvererr.Wrap(solvererr.KindBackend, "redis.Get", err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.rkey(key), value, ttl).Err(); err != nil {
		return solvererr.Wrap(solvererr.KindBackend, "redis.Set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.rkey(key)).Err(); err != nil {
		return solvererr.Wrap(solvererr.KindBackend, "redis.Delete", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.rkey(key)).Result()
	if err != nil {
		return false, solvererr.Wrap(solvererr.KindBackend, "redis.Exists", err)
	}
	return n > 0, nil
}

// ScanStatus uses Redis's cursor-based SCAN, restricted to the status
// namespace prefix, so the one startup scan the resume path needs never
// touches the blocking KEYS command.
func (s *Store) ScanStatus(ctx context.Context) ([]storage.StatusEntry, error) {
	pattern := s.rkey(storage.NamespaceStatus + ":*")
	var cursor uint64
	out := make([]storage.StatusEntry, 0)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, solvererr.Wrap(solvererr.KindBackend, "redis.ScanStatus", err)
		}
		for _, k := range keys {
			val, err := s.client.Get(ctx, k).Bytes()
			if err != nil {
				continue // evicted between SCAN and GET; treat as absent
			}
			id := strings.TrimPrefix(strings.TrimPrefix(k, s.prefix), storage.NamespaceStatus+":")
			out = append(out, storage.StatusEntry{OrderID: id, Value: val})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
