package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/r3e-network/intent-solver/internal/app/core/service"
)

// Manager owns the start/stop lifecycle of every registered Service. It is
// the single object the Engine uses to bring background components up and
// tear them down on shutdown, so that one signal drains discovery sources,
// settlement pollers, and confirmation watchers alike.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]struct{}
	started  bool
}

// NewManager returns an empty, unstarted Manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register adds a service to the managed set. Registering after Start has
// already been called also starts the service immediately, matching the
// "Attach" use case where an Engine wires a per-order task mid-run.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("system: nil service")
	}
	m.mu.Lock()
	name := svc.Name()
	if _, exists := m.names[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("system: service %q already registered", name)
	}
	m.names[name] = struct{}{}
	m.services = append(m.services, svc)
	started := m.started
	m.mu.Unlock()

	if started {
		return svc.Start(context.Background())
	}
	return nil
}

// Start starts every registered service in registration order, stopping
// already-started services and returning the first error encountered.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.started = true
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = services[j].Stop(ctx)
			}
			return fmt.Errorf("system: start %q: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops every registered service in reverse registration order. It
// collects errors rather than aborting at the first one, so a failure to
// stop one service does not leave others dangling.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.started = false
	m.mu.Unlock()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", services[i].Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %v", joined, e)
	}
	return joined
}

// Descriptors returns descriptors for every registered service that
// implements DescriptorProvider, sorted for deterministic presentation.
func (m *Manager) Descriptors() []core.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	providers := make([]DescriptorProvider, 0, len(m.services))
	for _, svc := range m.services {
		if dp, ok := svc.(DescriptorProvider); ok {
			providers = append(providers, dp)
		}
	}
	return CollectDescriptors(providers)
}

// NoopService is a placeholder Service used for components that are
// lifecycle-managed conceptually but have no background work of their own.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                 { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error { return nil }
func (n NoopService) Stop(ctx context.Context) error  { return nil }

var _ Service = NoopService{}
