// Package order is the Standard/Strategy registry described in §4.5: a
// plugin boundary that dispatches validation and transaction-building calls
// to the implementation registered for an intent's standard tag, and the
// single configured strategy for execute/skip/defer decisions.
package order

import (
	"context"
	"sync"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Standard is the per-intent-format plugin contract (§4.5). Implementations
// must be safe for concurrent use; the Registry holds one shared instance
// per standard tag.
type Standard interface {
	// Name is the standard tag this implementation registers under.
	Name() string
	// ValidateIntent parses and validates a raw Intent into an Order. Must
	// not perform I/O (§4.5: "pure with respect to Storage/Delivery").
	ValidateIntent(ctx context.Context, in *domainintent.Intent) (*order.Order, error)
	// GenerateFillTransaction builds the unsigned destination-chain
	// transaction that fulfils the order's output leg.
	GenerateFillTransaction(ctx context.Context, ord *order.Order, params order.ExecutionParams) (*chain.Transaction, error)
	// GenerateClaimTransaction builds the unsigned origin-chain transaction
	// that claims the escrowed input leg using the attested fill proof.
	GenerateClaimTransaction(ctx context.Context, ord *order.Order, proof *chain.FillProof) (*chain.Transaction, error)
}

// Strategy decides whether and how to execute a validated order (§4.5,
// "strategy-only; no I/O beyond what the context already carries"). Must be
// a pure function of its inputs (§9).
type Strategy interface {
	ShouldExecute(ctx context.Context, ord *order.Order, ec *order.ExecutionContext) order.ExecutionDecision
}

// Registry dispatches to the Standard registered for an intent's standard
// tag, grounded on the registration pattern used for strategy plugins
// elsewhere in the example pack (a mutex-guarded map keyed by string tag,
// populated once at startup and read many times at steady state).
type Registry struct {
	mu        sync.RWMutex
	standards map[string]Standard
	strategy  Strategy
}

// NewRegistry builds an empty registry. SetStrategy must be called before
// ShouldExecute; Register must be called for every standard configuration
// names before the Engine starts accepting intents.
func NewRegistry() *Registry {
	return &Registry{standards: make(map[string]Standard)}
}

// Register adds a Standard implementation under its own Name(). A second
// registration for the same name overwrites the first — callers own
// ordering at startup; the registry does not detect duplicates as an error
// since config-driven re-registration (e.g. test overrides) is legitimate.
func (r *Registry) Register(s Standard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standards[s.Name()] = s
}

// SetStrategy installs the single configured execution strategy.
func (r *Registry) SetStrategy(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy = s
}

func (r *Registry) lookup(standard string) (Standard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.standards[standard]
	if !ok {
		return nil, solvererr.New(solvererr.KindPluginViolation, "order.Registry", "unknown standard: "+standard)
	}
	return s, nil
}

// ValidateIntent dispatches to the registered Standard for in.Standard. An
// unregistered standard is a plugin-contract violation (§4.5), mapped by
// the Engine to Status = Skipped.
func (r *Registry) ValidateIntent(ctx context.Context, in *domainintent.Intent) (*order.Order, error) {
	s, err := r.lookup(in.Standard)
	if err != nil {
		return nil, err
	}
	return s.ValidateIntent(ctx, in)
}

func (r *Registry) GenerateFillTransaction(ctx context.Context, ord *order.Order, params order.ExecutionParams) (*chain.Transaction, error) {
	s, err := r.lookup(ord.Standard)
	if err != nil {
		return nil, err
	}
	return s.GenerateFillTransaction(ctx, ord, params)
}

func (r *Registry) GenerateClaimTransaction(ctx context.Context, ord *order.Order, proof *chain.FillProof) (*chain.Transaction, error) {
	s, err := r.lookup(ord.Standard)
	if err != nil {
		return nil, err
	}
	return s.GenerateClaimTransaction(ctx, ord, proof)
}

// ShouldExecute consults the single configured strategy.
func (r *Registry) ShouldExecute(ctx context.Context, ord *order.Order, ec *order.ExecutionContext) (order.ExecutionDecision, error) {
	r.mu.RLock()
	strat := r.strategy
	r.mu.RUnlock()
	if strat == nil {
		return order.ExecutionDecision{}, solvererr.New(solvererr.KindConfig, "order.Registry", "no execution strategy configured")
	}
	return strat.ShouldExecute(ctx, ord, ec), nil
}
