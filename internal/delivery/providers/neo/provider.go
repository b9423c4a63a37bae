// Package neo is a delivery provider for NEO N3 chains, grounded on the
// teacher's internal/chain RPC-client pattern: invoke, sign, send raw
// transaction, then poll the application log for confirmation depth.
package neo

import (
	"context"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Provider submits and confirms transactions on a single NEO N3 network.
type Provider struct {
	chainID      string
	client       *rpcclient.Client
	pollInterval time.Duration
}

// Config configures a neo provider.
type Config struct {
	ChainID      string
	RPCURL       string
	PollInterval time.Duration
}

// New dials the given RPC endpoint and returns a ready-to-use provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := rpcclient.New(ctx, cfg.RPCURL, rpcclient.Options{})
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "neo.New", err)
	}
	if err := client.Init(); err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "neo.New", err)
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Provider{chainID: cfg.ChainID, client: client, pollInterval: poll}, nil
}

func (p *Provider) ChainID() string             { return p.chainID }
func (p *Provider) PollInterval() time.Duration { return p.pollInterval }

// CurrentGasPrice satisfies delivery.GasPricer. NEO N3 has no gas-price
// market the way EVM chains do (fees are a fixed cost-per-byte plus
// execution cost); this reports zero so a capprofit strategy configured
// with a max_gas_price_gwei cap never defers NEO N3 orders on that basis.
func (p *Provider) CurrentGasPrice(_ context.Context) (string, error) {
	return "0", nil
}

// Submit signs the transaction via the Account capability and broadcasts
// it. tx.Data is expected to already be a NEO N3 invocation script, which
// the standard implementation targeting this chain family is responsible
// for producing; this provider only handles witness attachment and
// broadcast.
func (p *Provider) Submit(ctx context.Context, signer account.Account, tx *chain.Transaction) (chain.TransactionHash, error) {
	sig, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "neo.Submit", err)
	}

	neoTx := &transaction.Transaction{
		Script:          tx.Data,
		ValidUntilBlock: 0,
		Signers:         []transaction.Signer{{Account: util.Uint160{}}},
		Scripts: []transaction.Witness{{
			InvocationScript:   []byte(sig),
			VerificationScript: nil,
		}},
	}

	hash, err := p.client.SendRawTransaction(neoTx)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "neo.Submit", err)
	}
	return chain.TransactionHash(hash.BytesBE()), nil
}

// Receipt polls GetApplicationLog for the transaction and GetBlockCount
// for the chain height to compute confirmations, the NEO N3 analogue of
// the jsonrpc provider's eth_getTransactionReceipt + eth_blockNumber pair.
func (p *Provider) Receipt(ctx context.Context, hash chain.TransactionHash) (*chain.TransactionReceipt, error) {
	h, err := util.Uint256DecodeBytesBE(hash)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "neo.Receipt", err)
	}

	appLog, err := p.client.GetApplicationLog(h, nil)
	if err != nil {
		return nil, nil // not yet included; not an error for confirmation polling
	}

	height, err := p.client.GetBlockCount()
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "neo.Receipt", err)
	}

	txHeight, err := p.client.GetTransactionHeight(h)
	if err != nil {
		return nil, nil
	}

	var confirmations uint64
	if height > txHeight {
		confirmations = uint64(height - txHeight)
	}

	success := len(appLog.Executions) > 0 && appLog.Executions[0].VMState == vmstate.Halt
	receipt := &chain.TransactionReceipt{
		Hash:          hash,
		BlockNumber:   uint64(txHeight),
		Confirmations: confirmations,
		Success:       success,
	}
	if !success {
		receipt.FailureReason = "vm fault"
	}
	return receipt, nil
}
