// Package order holds the Order projection and the execution-decision
// types the Engine and the strategy plugins operate on. The Order/Standard
// registry and Strategy interfaces that produce and consume these types
// live in internal/order; this package only holds the data shapes so that
// internal/domain has no dependency on the plugin machinery.
package order

import (
	"encoding/json"
	"time"
)

// Status is the persisted, string-tagged order state. Terminal statuses
// (Completed, Skipped, Failed) carry an optional reason.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusFilled    Status = "filled"
	StatusClaiming  Status = "claiming"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// StatusRecord is what is actually persisted under the "status" namespace:
// the status tag plus its optional reason, so Skipped/Failed carry context
// without needing a second storage entry.
type StatusRecord struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// legalTransitions enumerates §4.7.5's transition graph. CanTransition is
// the single source of truth the Engine consults before every status write,
// so invariant I3 (status is monotonic along the legal graph) cannot be
// violated by a future call site forgetting to check.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusExecuting: true, StatusSkipped: true, StatusFailed: true, StatusPending: true},
	StatusExecuting: {StatusFilled: true, StatusFailed: true},
	StatusFilled:    {StatusClaiming: true, StatusFailed: true},
	StatusClaiming:  {StatusCompleted: true, StatusFailed: true},
}

// CanTransition reports whether moving from `from` to `to` is legal per
// §4.7.5. The empty Status (no prior record) may only move to Pending.
func CanTransition(from, to Status) bool {
	if from == "" {
		return to == StatusPending
	}
	next, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether a status is one of the three terminal states
// the restart scan (§7) leaves alone.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

// Order is the validated, standard-agnostic projection of an Intent.
// Standard-specific detail the Order plugin needs later (to build fill/
// claim transactions) lives in StandardData, an opaque per-standard blob
// the owning Standard implementation serializes and deserializes.
type Order struct {
	ID          string          `json:"id"`
	Standard    string          `json:"standard"`
	CreatedAt   time.Time       `json:"created_at"`
	OriginChain string          `json:"origin_chain"`
	DestChain   string          `json:"dest_chain"`
	User        string          `json:"user"`
	InputToken  string          `json:"input_token"`
	InputAmount string          `json:"input_amount"`
	OutputToken string          `json:"output_token"`
	OutputAmount string         `json:"output_amount"`
	Recipient   string          `json:"recipient"`
	Deadline    time.Time       `json:"deadline"`
	StandardData json.RawMessage `json:"standard_data,omitempty"`
}

// ExecutionParams is produced by the strategy and consumed when building
// the fill transaction.
type ExecutionParams struct {
	GasPrice    string
	PriorityFee string
}

// ExecutionContext is assembled by the Engine, not fetched by the
// strategy, so that ShouldExecute stays a pure function of its inputs
// (§9, "Strategy as a pure function of ExecutionContext").
type ExecutionContext struct {
	DestGasPrice   string
	Now            time.Time
	SolverBalances map[string]string // token address -> balance, decimal string
}

// DecisionKind tags which variant an ExecutionDecision holds.
type DecisionKind string

const (
	DecisionExecute DecisionKind = "execute"
	DecisionSkip    DecisionKind = "skip"
	DecisionDefer   DecisionKind = "defer"
)

// ExecutionDecision is the sum type `Execute(params) | Skip(reason) |
// Defer(duration)`. Go has no sum types, so Kind discriminates which of
// Params/Reason/After is populated; constructors below are the only
// sanctioned way to build one so a caller can't produce an inconsistent
// combination.
type ExecutionDecision struct {
	Kind   DecisionKind
	Params ExecutionParams
	Reason string
	After  time.Duration
}

func Execute(params ExecutionParams) ExecutionDecision {
	return ExecutionDecision{Kind: DecisionExecute, Params: params}
}

func Skip(reason string) ExecutionDecision {
	return ExecutionDecision{Kind: DecisionSkip, Reason: reason}
}

func Defer(after time.Duration) ExecutionDecision {
	return ExecutionDecision{Kind: DecisionDefer, After: after}
}
