// Package account defines the signing capability contract (§4.2). There is
// one process-wide Account instance; implementations must be safe for
// concurrent use since multiple Delivery providers may sign at once.
package account

import (
	"context"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
)

// Account holds or loans signing capability. It is passed as an explicit
// dependency into Delivery rather than reached for as a process-wide
// singleton (§9, "Signer as a capability, not a global"), which keeps
// Delivery testable with a fake signer.
type Account interface {
	// Address returns the solver's address for the given chain family.
	// Most implementations ignore chainID and return one address; an
	// implementation that holds per-chain-family keys may not.
	Address(chainID string) (string, error)

	// SignTransaction signs an unsigned Transaction. A signing failure is
	// non-recoverable per call (§4.2) — the caller surfaces it and moves
	// the order to Failed; there is no retry at this layer.
	SignTransaction(ctx context.Context, tx *chain.Transaction) (chain.Signature, error)
}
