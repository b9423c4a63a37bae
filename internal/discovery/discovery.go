// Package discovery implements per-source intent ingestion (§4.4). Each
// Source runs as an independent long-lived task; the Service starts and
// stops all configured sources together and owns their lifecycle via
// system.Manager, the same Start/Stop/WaitGroup shape used throughout this
// codebase's background components.
package discovery

import (
	"context"

	"github.com/r3e-network/intent-solver/internal/app/system"
	"github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/pkg/logger"
)

// Source is one long-lived intent feed. Run pushes Intent values into sink
// until ctx is cancelled or an unrecoverable error occurs; a Source must
// deduplicate within its own stream (§4.4) and reconnect with backoff on
// transient errors rather than returning.
type Source interface {
	Name() string
	Run(ctx context.Context, sink chan<- intent.Intent) error
}

// Service runs start_all/stop_all (§4.4) over a configured set of sources.
type Service struct {
	sources []Source
	log     *logger.Logger
	manager *system.Manager
}

// New builds a Discovery service over the given sources.
func New(log *logger.Logger, sources ...Source) *Service {
	if log == nil {
		log = logger.NewDefault("discovery")
	}
	return &Service{sources: sources, log: log, manager: system.NewManager()}
}

// StartAll begins pushing Intent values from every configured source into
// sink. Each source runs under its own lifecycle-managed task so a single
// source crashing does not take others down with it.
func (s *Service) StartAll(ctx context.Context, sink chan<- intent.Intent) error {
	for _, src := range s.sources {
		task := newSourceTask(src, sink, s.log)
		if err := s.manager.Register(task); err != nil {
			return err
		}
	}
	return s.manager.Start(ctx)
}

// StopAll requests every source to stop and waits (bounded by ctx) for
// them to cease emitting.
func (s *Service) StopAll(ctx context.Context) error {
	return s.manager.Stop(ctx)
}
