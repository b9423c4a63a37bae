package engine

import "github.com/r3e-network/intent-solver/internal/domain/chain"

// event is the sealed set of internal events the Engine's select loop
// handles (§4.7.2). Sealing via an unexported method makes adding a new
// event type a compile error at every switch site that must handle it,
// rather than a silently-ignored new string tag.
type event interface {
	isEvent()
}

// retryOrderEvent re-enters §4.7.1 step 4 for a deferred order.
type retryOrderEvent struct {
	orderID string
}

func (retryOrderEvent) isEvent() {}

// fillConfirmedEvent reports that the fill transaction reached the
// required confirmation depth.
type fillConfirmedEvent struct {
	orderID string
	receipt *chain.TransactionReceipt
}

func (fillConfirmedEvent) isEvent() {}

// proofReadyEvent reports that Settlement produced a FillProof.
type proofReadyEvent struct {
	orderID string
	proof   *chain.FillProof
}

func (proofReadyEvent) isEvent() {}

// claimConfirmedEvent reports that the claim transaction reached the
// required confirmation depth.
type claimConfirmedEvent struct {
	orderID string
	receipt *chain.TransactionReceipt
}

func (claimConfirmedEvent) isEvent() {}

// transactionFailedEvent reports a terminal failure from a spawned task
// (confirmation timeout, revert, settlement monitoring failure).
type transactionFailedEvent struct {
	orderID string
	where   string // "fill" | "claim" | "settlement"
	reason  string
}

func (transactionFailedEvent) isEvent() {}

// claimReadyRecheckEvent requests a CanClaim re-check after a settlement
// back-off, when ProofReady found CanClaim still false (§4.7.2).
type claimReadyRecheckEvent struct {
	orderID string
}

func (claimReadyRecheckEvent) isEvent() {}
