// Package settlement is the per-standard oracle attestation registry
// described in §4.6: monitors a fill until it is attested (and any dispute
// window has elapsed), and re-checks claim readiness just before claim
// submission.
package settlement

import (
	"context"
	"sync"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Standard is the per-settlement-standard plugin contract.
type Standard interface {
	Name() string
	// MonitorFill polls the attestation source until fillTxHash is
	// attested and any dispute window elapses, then returns the proof.
	// Cancellable via ctx (§4.6, "the monitor must be cancellable").
	MonitorFill(ctx context.Context, ord *order.Order, fillTxHash chain.TransactionHash) (*chain.FillProof, error)
	// CanClaim is a side-effect-free re-check called just before claim
	// submission.
	CanClaim(ctx context.Context, ord *order.Order, proof *chain.FillProof) (bool, error)
}

// Registry dispatches to the Standard registered for an order's standard
// tag, mirroring order.Registry.
type Registry struct {
	mu         sync.RWMutex
	standards  map[string]Standard
}

func NewRegistry() *Registry {
	return &Registry{standards: make(map[string]Standard)}
}

// Register adds a Standard implementation under tag, the
// `[settlement.implementations.<tag>]` config section key it was built
// from. This is deliberately independent of s.Name(): a single
// implementation (e.g. the REST-polling oracle standard) may be
// reused under several order standard tags, and an order's Standard
// field (the dispatch key Registry.lookup uses) need not match the
// implementation's own self-reported name.
func (r *Registry) Register(tag string, s Standard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standards[tag] = s
}

func (r *Registry) lookup(standard string) (Standard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.standards[standard]
	if !ok {
		return nil, solvererr.New(solvererr.KindPluginViolation, "settlement.Registry", "unknown standard: "+standard)
	}
	return s, nil
}

func (r *Registry) MonitorFill(ctx context.Context, ord *order.Order, fillTxHash chain.TransactionHash) (*chain.FillProof, error) {
	s, err := r.lookup(ord.Standard)
	if err != nil {
		return nil, err
	}
	return s.MonitorFill(ctx, ord, fillTxHash)
}

func (r *Registry) CanClaim(ctx context.Context, ord *order.Order, proof *chain.FillProof) (bool, error) {
	s, err := r.lookup(ord.Standard)
	if err != nil {
		return false, err
	}
	return s.CanClaim(ctx, ord, proof)
}
