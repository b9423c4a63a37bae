// Package delivery implements per-chain transaction submission and
// confirmation monitoring (§4.3). Delivery holds an ordered list of
// Providers; the first provider whose chain matches a transaction is
// selected, with transient failures falling through to the next provider
// for that chain.
package delivery

import (
	"context"
	"time"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Provider submits and monitors transactions for exactly one chain.
// Implementations live under delivery/providers/*.
type Provider interface {
	ChainID() string
	// Submit signs tx via signer and broadcasts it, returning the hash.
	Submit(ctx context.Context, signer account.Account, tx *chain.Transaction) (chain.TransactionHash, error)
	// Receipt performs a one-shot receipt query (§4.3 get_status).
	Receipt(ctx context.Context, hash chain.TransactionHash) (*chain.TransactionReceipt, error)
	// PollInterval is how often Confirm below should re-query Receipt.
	PollInterval() time.Duration
}

// GasPricer is optionally implemented by a Provider that can report the
// destination chain's current gas price for ExecutionContext (§4.7.1 step
// 4). Not every chain family has a gas-price market, so this is an
// optional capability rather than part of Provider itself.
type GasPricer interface {
	CurrentGasPrice(ctx context.Context) (string, error)
}

// Service is the Delivery contract: deliver, confirm, get_status.
type Service struct {
	signer    account.Account
	providers map[string][]Provider // chain id -> ordered provider list
}

// New builds a Delivery service over the given signer and providers.
// Providers are grouped by ChainID, preserving registration order within
// a chain so "first provider whose chain matches" (§4.3) is well defined.
func New(signer account.Account, providers ...Provider) *Service {
	byChain := make(map[string][]Provider)
	for _, p := range providers {
		byChain[p.ChainID()] = append(byChain[p.ChainID()], p)
	}
	return &Service{signer: signer, providers: byChain}
}

// Deliver signs and submits tx, falling through to the next provider for
// the same chain on a transient failure. Non-transient (user-fault)
// failures are returned immediately without fallback, per §4.3.
func (s *Service) Deliver(ctx context.Context, tx *chain.Transaction) (chain.TransactionHash, error) {
	providers := s.providers[tx.ChainID]
	if len(providers) == 0 {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "delivery.Deliver", "no provider available for chain "+tx.ChainID)
	}

	var lastErr error
	for _, p := range providers {
		hash, err := p.Submit(ctx, s.signer, tx)
		if err == nil {
			return hash, nil
		}
		lastErr = err
		if !solvererr.IsTransient(err) {
			return nil, err
		}
	}
	return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "delivery.Deliver", lastErr)
}

// Confirm blocks, polling Receipt at the provider's configured interval,
// until the transaction has at least `confirmations` confirmations or the
// context is cancelled. A receipt reporting success=false returns a
// non-recoverable TransactionFailed error.
func (s *Service) Confirm(ctx context.Context, chainID string, hash chain.TransactionHash, confirmations uint64) (*chain.TransactionReceipt, error) {
	providers := s.providers[chainID]
	if len(providers) == 0 {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "delivery.Confirm", "no provider available for chain "+chainID)
	}
	p := providers[0]

	ticker := time.NewTicker(p.PollInterval())
	defer ticker.Stop()

	for {
		receipt, err := p.Receipt(ctx, hash)
		if err == nil && receipt != nil {
			if !receipt.Success {
				return receipt, solvererr.New(solvererr.KindNonRecoverable, "delivery.Confirm", "transaction failed: "+receipt.FailureReason)
			}
			if receipt.Confirmations >= confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, solvererr.Wrap(solvererr.KindCancellation, "delivery.Confirm", ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetStatus performs a one-shot receipt query without waiting for any
// particular confirmation depth.
func (s *Service) GetStatus(ctx context.Context, chainID string, hash chain.TransactionHash) (*chain.TransactionReceipt, error) {
	providers := s.providers[chainID]
	if len(providers) == 0 {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "delivery.GetStatus", "no provider available for chain "+chainID)
	}
	return providers[0].Receipt(ctx, hash)
}

// CurrentGasPrice reports the first chain-id-matching provider's current
// gas price, for the Engine's ExecutionContext (§4.7.1 step 4). Returns
// "0" if no registered provider for the chain implements GasPricer.
func (s *Service) CurrentGasPrice(ctx context.Context, chainID string) (string, error) {
	for _, p := range s.providers[chainID] {
		if gp, ok := p.(GasPricer); ok {
			return gp.CurrentGasPrice(ctx)
		}
	}
	return "0", nil
}
