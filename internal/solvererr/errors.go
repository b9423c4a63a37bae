// Package solvererr defines the solver-wide error taxonomy. Every service
// (Storage, Account, Delivery, Discovery, Order, Settlement) returns errors
// wrapped in this type so the Engine can dispatch on Kind without knowing
// which component produced the failure.
package solvererr

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy. It is a classification, not a 1:1 mapping to
// a single Go type: many different failures share a Kind because the Engine
// treats them identically (same status transition, same retry policy).
type Kind string

const (
	// KindConfig is a fatal startup configuration problem.
	KindConfig Kind = "config"
	// KindSerialization is data corruption or schema/version drift.
	KindSerialization Kind = "serialization"
	// KindTransient is a retryable network/availability failure.
	KindTransient Kind = "transient"
	// KindNonRecoverable is a terminal chain-level failure (revert, bad
	// signature, insufficient balance).
	KindNonRecoverable Kind = "non_recoverable"
	// KindPluginViolation is a contract violation by a plugin (unknown
	// standard, malformed intent).
	KindPluginViolation Kind = "plugin_violation"
	// KindTimeout is a bounded-wait timeout.
	KindTimeout Kind = "timeout"
	// KindCancellation is a caller-requested cancellation; not a failure.
	KindCancellation Kind = "cancellation"
	// KindNotFound models storage.NotFound specifically, since the Engine
	// treats "never existed" differently from other backend failures.
	KindNotFound Kind = "not_found"
	// KindBackend is a storage backend failure that isn't a miss or a
	// serialization problem (connection refused, constraint violation).
	KindBackend Kind = "backend"
)

// Error is the single wrapping type used across the solver.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a solvererr.Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap attaches a Kind and operation name to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to
// KindNonRecoverable for errors that never opted into the taxonomy (an
// unclassified failure should never be silently retried forever).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNonRecoverable
}

// IsNotFound reports whether err represents a storage miss.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsTransient reports whether err should be retried by the caller.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsCancellation reports whether err is a cancellation, which the Engine
// must never treat as a status-changing failure.
func IsCancellation(err error) bool {
	return KindOf(err) == KindCancellation
}
