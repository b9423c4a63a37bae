// Package memory is an in-process Store backend: a single map guarded by a
// mutex, with every value returned as a defensive copy so a caller mutating
// a slice it got back from Get never corrupts what's stored — the same
// clone-on-access idiom used throughout the teacher's in-memory store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
)

type entry struct {
	value   []byte
	expires time.Time // zero value means no expiry
}

// Store is a concurrency-safe in-memory implementation of storage.Store.
// Intended for tests and single-node demo deployments; nothing here
// survives a process restart, so it cannot satisfy §4.1's crash-durability
// requirement on its own.
type Store struct {
	mu   sync.RWMutex
	data map[string]entry

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepOnce     sync.Once
}

// New returns an empty Store and starts its background TTL sweeper.
func New() *Store {
	s := &Store{
		data:          make(map[string]entry),
		sweepInterval: 30 * time.Second,
		stopSweep:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.data, k)
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, solvererr.New(solvererr.KindNotFound, "memory.Get", "key not found: "+key)
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, solvererr.New(solvererr.KindNotFound, "memory.Get", "key expired: "+key)
	}
	return cloneBytes(e.value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = entry{value: cloneBytes(value), expires: expires}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return false, nil
	}
	return true, nil
}

func (s *Store) ScanStatus(ctx context.Context) ([]storage.StatusEntry, error) {
	prefix := storage.NamespaceStatus + ":"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.StatusEntry, 0)
	now := time.Now()
	for k, e := range s.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.expires.IsZero() && now.After(e.expires) {
			continue
		}
		out = append(out, storage.StatusEntry{
			OrderID: strings.TrimPrefix(k, prefix),
			Value:   cloneBytes(e.value),
		})
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
