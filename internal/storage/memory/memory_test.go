package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
)

func TestSetGetRoundtrip(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders:1", []byte("hello"), 0))

	got, err := s.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.Get(context.Background(), "orders:missing")
	require.Error(t, err)
	assert.True(t, solvererr.IsNotFound(err))
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders:1", []byte("hello"), 0))

	got, err := s.Get(ctx, "orders:1")
	require.NoError(t, err)
	got[0] = 'X' // mutate the caller's copy

	got2, err := s.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got2, "mutating a returned slice must not corrupt stored data")
}

func TestExpiredEntryNotFound(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders:1", []byte("hello"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "orders:1")
	require.Error(t, err)
	assert.True(t, solvererr.IsNotFound(err))

	ok, err := s.Exists(ctx, "orders:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders:1", []byte("hello"), 0))
	require.NoError(t, s.Delete(ctx, "orders:1"))

	ok, err := s.Exists(ctx, "orders:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanStatusFiltersNamespaceAndExpiry(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, storage.Key(storage.NamespaceStatus, "order-1"), []byte(`{"status":"pending"}`), 0))
	require.NoError(t, s.Set(ctx, storage.Key(storage.NamespaceStatus, "order-2"), []byte(`{"status":"filled"}`), time.Millisecond))
	require.NoError(t, s.Set(ctx, storage.Key(storage.NamespaceOrders, "order-1"), []byte(`{}`), 0))

	time.Sleep(5 * time.Millisecond)

	entries, err := s.ScanStatus(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "order-1", entries[0].OrderID)
}

func TestGetJSONSetJSONHelpers(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, storage.SetJSON(ctx, s, storage.NamespaceOrders, "1", payload{Name: "alice"}, 0))

	got, err := storage.GetJSON[payload](ctx, s, storage.NamespaceOrders, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
}

func TestGetJSONMissingIsNotFound(t *testing.T) {
	s := New()
	defer s.Close()

	type payload struct{ Name string }
	_, err := storage.GetJSON[payload](context.Background(), s, storage.NamespaceOrders, "missing")
	require.Error(t, err)
	assert.True(t, solvererr.IsNotFound(err))
}
