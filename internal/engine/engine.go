// Package engine implements the Engine component (§4.7): the single owner
// of each order's progression through the state machine
// Pending → Executing → Filled → Claiming → Completed (or Skipped/Failed
// along the way). A single event loop consumes Discovery intake and
// internal events from spawned per-order tasks; the loop itself never
// blocks on network I/O (§4.7).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/delivery"
	"github.com/r3e-network/intent-solver/internal/domain/chain"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	domainorder "github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/metrics"
	ordersvc "github.com/r3e-network/intent-solver/internal/order"
	settlementsvc "github.com/r3e-network/intent-solver/internal/settlement"
	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
	"github.com/r3e-network/intent-solver/pkg/logger"
)

// Engine is constructed with the functional-options pattern used by the
// teacher's app.Application/app.Option, since it has the same shape:
// several optional collaborators assembled once at startup.
type Engine struct {
	log        *logger.Logger
	metrics    *metrics.Metrics
	store      storage.Store
	acct       account.Account
	delivery   *delivery.Service
	orders     *ordersvc.Registry
	settlement *settlementsvc.Registry

	minConfirmations uint64
	fillTimeout      time.Duration
	claimTimeout     time.Duration
	settlementTimeout time.Duration

	intake chan domainintent.Intent
	events chan event

	runCancel context.CancelFunc
	wg        sync.WaitGroup

	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithLogger(l *logger.Logger) Option        { return func(e *Engine) { e.log = l } }
func WithMetrics(m *metrics.Metrics) Option     { return func(e *Engine) { e.metrics = m } }
func WithStorage(s storage.Store) Option        { return func(e *Engine) { e.store = s } }
func WithAccount(a account.Account) Option      { return func(e *Engine) { e.acct = a } }
func WithDelivery(d *delivery.Service) Option   { return func(e *Engine) { e.delivery = d } }
func WithOrderRegistry(r *ordersvc.Registry) Option {
	return func(e *Engine) { e.orders = r }
}
func WithSettlementRegistry(r *settlementsvc.Registry) Option {
	return func(e *Engine) { e.settlement = r }
}
func WithMinConfirmations(n uint64) Option { return func(e *Engine) { e.minConfirmations = n } }
func WithFillTimeout(d time.Duration) Option {
	return func(e *Engine) { e.fillTimeout = d }
}
func WithClaimTimeout(d time.Duration) Option {
	return func(e *Engine) { e.claimTimeout = d }
}
func WithSettlementTimeout(d time.Duration) Option {
	return func(e *Engine) { e.settlementTimeout = d }
}

// New builds an Engine from the given options. The Discovery intake
// channel is created here and returned so the caller can wire it as the
// sink for discovery.Service.StartAll.
func New(opts ...Option) *Engine {
	e := &Engine{
		minConfirmations: 1,
		fillTimeout:      5 * time.Minute,
		claimTimeout:     5 * time.Minute,
		settlementTimeout: 30 * time.Minute,
		intake:           make(chan domainintent.Intent, 256),
		events:           make(chan event, 256),
		tasks:            make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.NewDefault("engine")
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e
}

// Intake returns the channel Discovery sources should push Intents into.
func (e *Engine) Intake() chan<- domainintent.Intent { return e.intake }

func (e *Engine) Name() string { return "engine" }

// Start launches the event loop and resumes any orders interrupted by a
// prior crash (§7), then returns immediately; the loop runs in the
// background until Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.runCancel = cancel

	if err := e.resume(runCtx); err != nil {
		cancel()
		return fmt.Errorf("engine: resume: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(runCtx)
	}()
	return nil
}

// Stop cancels the event loop and every spawned per-order task, then
// waits (bounded by ctx) for all of them to drain.
func (e *Engine) Stop(ctx context.Context) error {
	if e.runCancel != nil {
		e.runCancel()
	}
	e.tasksMu.Lock()
	for _, cancel := range e.tasks {
		cancel()
	}
	e.tasksMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop is the single-threaded event loop of §4.7: it never blocks on
// network I/O, only on the select itself.
func (e *Engine) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-e.intake:
			e.onIntent(ctx, in)
		case ev := <-e.events:
			e.onEvent(ctx, ev)
		}
	}
}

// spawn tracks a per-order background task's cancel func so Stop can
// cancel it, and removes the entry once the task's goroutine exits.
func (e *Engine) spawn(parent context.Context, orderID string, fn func(ctx context.Context)) {
	taskCtx, cancel := context.WithCancel(parent)
	e.tasksMu.Lock()
	e.tasks[orderID] = cancel
	e.tasksMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.tasksMu.Lock()
			delete(e.tasks, orderID)
			e.tasksMu.Unlock()
			cancel()
		}()
		fn(taskCtx)
	}()
}

func (e *Engine) emit(ev event) {
	select {
	case e.events <- ev:
	default:
		// events channel is sized generously for steady-state load; a full
		// channel here means the loop is badly backed up, so block rather
		// than drop a completion event and leave an order stuck mid-flight.
		e.events <- ev
	}
}

// setStatus enforces invariant I3 via domainorder.CanTransition before
// writing, then persists the new status — "every transition is preceded
// by the corresponding persistent write" (§4.7.5).
func (e *Engine) setStatus(ctx context.Context, orderID string, to domainorder.Status, reason string) error {
	current, err := e.currentStatus(ctx, orderID)
	if err != nil && !solvererr.IsNotFound(err) {
		return err
	}
	if !domainorder.CanTransition(current, to) {
		return solvererr.New(solvererr.KindNonRecoverable, "engine.setStatus",
			fmt.Sprintf("illegal transition %s -> %s for order %s", current, to, orderID))
	}
	if err := storage.SetJSON(ctx, e.store, storage.NamespaceStatus, orderID,
		domainorder.StatusRecord{Status: to, Reason: reason}, 0); err != nil {
		return err
	}
	e.log.WithField("order_id", orderID).WithField("from_status", current).
		WithField("to_status", to).Info("order status transition")
	e.metrics.Transitions.WithLabelValues("", string(current), string(to)).Inc()
	return nil
}

func (e *Engine) currentStatus(ctx context.Context, orderID string) (domainorder.Status, error) {
	rec, err := storage.GetJSON[domainorder.StatusRecord](ctx, e.store, storage.NamespaceStatus, orderID)
	if err != nil {
		if solvererr.IsNotFound(err) {
			return "", err
		}
		return "", err
	}
	return rec.Status, nil
}

func (e *Engine) loadOrder(ctx context.Context, orderID string) (*domainorder.Order, error) {
	ord, err := storage.GetJSON[domainorder.Order](ctx, e.store, storage.NamespaceOrders, orderID)
	if err != nil {
		return nil, err
	}
	return &ord, nil
}

func (e *Engine) saveFillHash(ctx context.Context, orderID string, hash chain.TransactionHash) error {
	return storage.SetJSON(ctx, e.store, storage.NamespaceFills, orderID, []byte(hash), 0)
}

func (e *Engine) loadFillHash(ctx context.Context, orderID string) (chain.TransactionHash, error) {
	raw, err := storage.GetJSON[[]byte](ctx, e.store, storage.NamespaceFills, orderID)
	if err != nil {
		return nil, err
	}
	return chain.TransactionHash(raw), nil
}

func (e *Engine) saveClaimHash(ctx context.Context, orderID string, hash chain.TransactionHash) error {
	return storage.SetJSON(ctx, e.store, storage.NamespaceClaims, orderID, []byte(hash), 0)
}

func (e *Engine) loadClaimHash(ctx context.Context, orderID string) (chain.TransactionHash, error) {
	raw, err := storage.GetJSON[[]byte](ctx, e.store, storage.NamespaceClaims, orderID)
	if err != nil {
		return nil, err
	}
	return chain.TransactionHash(raw), nil
}

func (e *Engine) saveFillProof(ctx context.Context, orderID string, proof *chain.FillProof) error {
	return storage.SetJSON(ctx, e.store, storage.NamespaceFillProofs, orderID, proof, 0)
}

func (e *Engine) loadFillProof(ctx context.Context, orderID string) (*chain.FillProof, error) {
	proof, err := storage.GetJSON[chain.FillProof](ctx, e.store, storage.NamespaceFillProofs, orderID)
	if err != nil {
		return nil, err
	}
	return &proof, nil
}
