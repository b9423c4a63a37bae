// Package storage defines the namespaced key/value contract (§4.1) every
// backend implements, plus typed JSON helpers so callers never touch raw
// bytes. Storage is deliberately minimal: no secondary indexes, no
// multi-key transactions, no listing — the one exception, ScanStatus, is
// called only at startup by the Engine's resume path (§7).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Namespaces match §3's storage table exactly.
const (
	NamespaceOrders     = "orders"
	NamespaceFills      = "fills"
	NamespaceFillProofs = "fill_proofs"
	NamespaceClaims     = "claims"
	NamespaceStatus     = "status"
)

// Key builds the externally-observable "{namespace}:{id}" key.
func Key(namespace, id string) string {
	return fmt.Sprintf("%s:%s", namespace, id)
}

// Store is the backend-agnostic namespaced key/value contract. Values are
// opaque []byte; typed helpers (GetJSON/SetJSON below) serialize from the
// canonical JSON format callers use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ScanStatus enumerates the "status" namespace. It is the sole
	// exception to "no listing or range scan" (§4.1) and exists only to
	// satisfy the Engine's restart resume (§7); nothing else calls it.
	ScanStatus(ctx context.Context) ([]StatusEntry, error)
}

// StatusEntry is one row produced by ScanStatus: an order id and its
// raw, still-serialized status value.
type StatusEntry struct {
	OrderID string
	Value   []byte
}

// GetJSON reads key and unmarshals it into a value of type T. It returns a
// *solvererr.Error with KindNotFound if the key is absent, or
// KindSerialization if the stored bytes do not unmarshal.
func GetJSON[T any](ctx context.Context, s Store, namespace, id string) (T, error) {
	var out T
	raw, err := s.Get(ctx, Key(namespace, id))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, solvererr.Wrap(solvererr.KindSerialization, "storage.GetJSON", err)
	}
	return out, nil
}

// SetJSON marshals value to canonical JSON and writes it under
// "{namespace}:{id}". A zero ttl means "no expiry".
func SetJSON[T any](ctx context.Context, s Store, namespace, id string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return solvererr.Wrap(solvererr.KindSerialization, "storage.SetJSON", err)
	}
	return s.Set(ctx, Key(namespace, id), raw, ttl)
}

// Exists is a small convenience wrapper kept alongside the generic helpers
// so callers never need to compute a namespaced key by hand.
func Exists(ctx context.Context, s Store, namespace, id string) (bool, error) {
	return s.Exists(ctx, Key(namespace, id))
}
