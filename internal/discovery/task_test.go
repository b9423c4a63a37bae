package discovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/pkg/logger"
)

// countingSource pushes one intent then blocks until ctx is cancelled,
// reporting how many times Run was invoked (used to check reconnect).
type countingSource struct {
	runs      int32
	failOnce  bool
	failedYet int32
}

func (s *countingSource) Name() string { return "counting" }
func (s *countingSource) Run(ctx context.Context, sink chan<- intent.Intent) error {
	atomic.AddInt32(&s.runs, 1)
	sink <- intent.Intent{ID: "i1"}
	if s.failOnce && atomic.CompareAndSwapInt32(&s.failedYet, 0, 1) {
		return assert.AnError
	}
	<-ctx.Done()
	return nil
}

func TestServiceStartAllPushesIntents(t *testing.T) {
	src := &countingSource{}
	svc := New(logger.NewDefault("test"), src)

	sink := make(chan intent.Intent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.StartAll(ctx, sink))

	select {
	case in := <-sink:
		assert.Equal(t, "i1", in.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for intent")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, svc.StopAll(stopCtx))
}

func TestSourceTaskReconnectsAfterError(t *testing.T) {
	src := &countingSource{failOnce: true}
	sink := make(chan intent.Intent, 8)
	task := newSourceTask(src, sink, logger.NewDefault("test"))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, task.Start(ctx))

	// Drain the first intent (from the run that will fail).
	select {
	case <-sink:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first intent")
	}

	// The backoff before reconnecting starts at 1s in production code;
	// this test only asserts that a second Run eventually happens, not
	// the exact timing, so it waits generously.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&src.runs) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, task.Stop(stopCtx))
}

func TestSourceTaskStopIsIdempotentWithNoStart(t *testing.T) {
	src := &countingSource{}
	task := newSourceTask(src, make(chan intent.Intent, 1), logger.NewDefault("test"))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, task.Stop(stopCtx))
}
