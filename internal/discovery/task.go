package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/pkg/logger"
)

// sourceTask adapts a Source into a system.Service, reconnecting with
// exponential backoff whenever Run returns an error — "a source that
// errors out logs and reconnects with backoff; it does not crash the
// Engine" (§4.4).
type sourceTask struct {
	src  Source
	sink chan<- intent.Intent
	log  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSourceTask(src Source, sink chan<- intent.Intent, log *logger.Logger) *sourceTask {
	return &sourceTask{src: src, sink: sink, log: log}
}

func (t *sourceTask) Name() string { return "discovery-source-" + t.src.Name() }

func (t *sourceTask) Start(ctx context.Context) error {
	t.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.runWithBackoff(runCtx)
	}()
	return nil
}

func (t *sourceTask) runWithBackoff(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := t.src.Run(ctx, t.sink)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.log.WithField("source", t.src.Name()).WithError(err).Warn("discovery source stopped; reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (t *sourceTask) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
