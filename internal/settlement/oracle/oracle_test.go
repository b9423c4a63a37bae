package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

func TestShouldAttemptTrueBeforeAnyScheduling(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid"})
	assert.True(t, s.shouldAttempt("order-1"))
}

func TestScheduleNextBacksOffExponentially(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid", InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second})

	s.scheduleNext("order-1")
	assert.False(t, s.shouldAttempt("order-1"))
	first := s.backoff["order-1"]
	assert.Equal(t, 10*time.Millisecond, first)

	s.scheduleNext("order-1")
	assert.Equal(t, 20*time.Millisecond, s.backoff["order-1"])
}

func TestScheduleNextCapsAtMaxBackoff(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid", InitialBackoff: 100 * time.Millisecond, MaxBackoff: 150 * time.Millisecond})

	s.scheduleNext("order-1")
	s.scheduleNext("order-1") // would be 200ms uncapped
	assert.Equal(t, 150*time.Millisecond, s.backoff["order-1"])
}

func TestClearScheduleResetsState(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid"})
	s.scheduleNext("order-1")
	s.clearSchedule("order-1")
	assert.True(t, s.shouldAttempt("order-1"))
	_, exists := s.backoff["order-1"]
	assert.False(t, exists)
}

func TestCanClaimBeforeDisputeWindowElapses(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid", DisputeWindow: time.Hour})
	proof := &chain.FillProof{AttestedAt: time.Now()}
	ok, err := s.CanClaim(context.Background(), &order.Order{}, proof)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanClaimAfterDisputeWindowElapses(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid", DisputeWindow: time.Millisecond})
	proof := &chain.FillProof{AttestedAt: time.Now().Add(-time.Hour)}
	ok, err := s.CanClaim(context.Background(), &order.Order{}, proof)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanClaimNilProof(t *testing.T) {
	s := New(Config{Endpoint: "http://example.invalid"})
	ok, err := s.CanClaim(context.Background(), &order.Order{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMonitorFillReturnsProofOnceAttestedWithElapsedWindow(t *testing.T) {
	attestedAt := time.Now().Add(-time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"attested": true, "attested_at_unix": %d, "block_number": 42, "attestation": "0xsig"}`, attestedAt.Unix())
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond, DisputeWindow: 0})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	proof, err := s.MonitorFill(ctx, &order.Order{ID: "order-1"}, chain.TransactionHash("fillhash"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), proof.BlockNumber)
	assert.Equal(t, "0xsig", string(proof.Attestation))
}

func TestMonitorFillRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.MonitorFill(ctx, &order.Order{ID: "order-1"}, chain.TransactionHash("fillhash"))
	require.Error(t, err)
	assert.Equal(t, solvererr.KindCancellation, solvererr.KindOf(err))
}

func TestMonitorFillTransientOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.MonitorFill(ctx, &order.Order{ID: "order-1"}, chain.TransactionHash("fillhash"))
	require.Error(t, err)
	assert.Equal(t, solvererr.KindTransient, solvererr.KindOf(err))
}
