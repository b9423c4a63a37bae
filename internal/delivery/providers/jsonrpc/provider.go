// Package jsonrpc is a chain-family-agnostic EVM-style JSON-RPC delivery
// provider: eth_sendRawTransaction, eth_getTransactionReceipt,
// eth_blockNumber. It is the default provider for the demo origin/
// destination chains used in the end-to-end scenarios.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Provider is an EVM-style JSON-RPC delivery provider for one chain id.
type Provider struct {
	chainID      string
	rpcURL       string
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration

	// nonceMu serializes nonce-producing submissions per (chain, signer)
	// as required by §5's shared-resources note.
	nonceMu sync.Mutex
}

// Config configures a jsonrpc provider.
type Config struct {
	ChainID           string
	RPCURL            string
	RequestsPerSecond float64
	Burst             int
	PollInterval      time.Duration
}

// New constructs a rate-limited JSON-RPC provider, grounded on the
// teacher's infrastructure/ratelimit wrapper over golang.org/x/time/rate.
func New(cfg Config) *Provider {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps * 2)
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return &Provider{
		chainID:      cfg.ChainID,
		rpcURL:       cfg.RPCURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		pollInterval: poll,
	}
}

func (p *Provider) ChainID() string            { return p.chainID }
func (p *Provider) PollInterval() time.Duration { return p.pollInterval }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, solvererr.Wrap(solvererr.KindCancellation, "jsonrpc.call", err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.call", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "jsonrpc.call", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "jsonrpc.call", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindTransient, "jsonrpc.call", err)
	}
	if resp.StatusCode >= 500 {
		return nil, solvererr.New(solvererr.KindTransient, "jsonrpc.call", fmt.Sprintf("rpc status %d", resp.StatusCode))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.call", err)
	}
	if parsed.Error != nil {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "jsonrpc.call", parsed.Error.Message)
	}
	return parsed.Result, nil
}

// Submit encodes tx, asks the Account to sign it, and broadcasts the raw
// transaction via eth_sendRawTransaction.
func (p *Provider) Submit(ctx context.Context, signer account.Account, tx *chain.Transaction) (chain.TransactionHash, error) {
	p.nonceMu.Lock()
	defer p.nonceMu.Unlock()

	sig, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "jsonrpc.Submit", err)
	}

	raw := encodeRawTransaction(tx, sig)
	result, err := p.call(ctx, "eth_sendRawTransaction", []interface{}{raw})
	if err != nil {
		return nil, err
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.Submit", err)
	}
	return chain.TransactionHash(hash), nil
}

// encodeRawTransaction assembles the wire-format raw transaction. The
// exact RLP/EIP-1559 encoding is out of scope for this solver (§1 excludes
// "blockchain client libraries"); this hex-packs the fields the demo
// chain's RPC endpoint expects.
func encodeRawTransaction(tx *chain.Transaction, sig chain.Signature) string {
	return fmt.Sprintf("0x%x:%x", tx.Data, []byte(sig))
}

type evmReceipt struct {
	TransactionHash   string `json:"transactionHash"`
	BlockNumber       string `json:"blockNumber"`
	Status            string `json:"status"`
}

// Receipt fetches the receipt and the current block height to compute
// confirmations, matching the confirmation-depth semantics §4.3 requires.
func (p *Provider) Receipt(ctx context.Context, hash chain.TransactionHash) (*chain.TransactionReceipt, error) {
	result, err := p.call(ctx, "eth_getTransactionReceipt", []interface{}{hash.String()})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil // not yet mined; Confirm keeps polling
	}

	var r evmReceipt
	if err := json.Unmarshal(result, &r); err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.Receipt", err)
	}

	blockNum, err := parseHexUint(r.BlockNumber)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.Receipt", err)
	}

	head, err := p.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return nil, err
	}
	var headHex string
	if err := json.Unmarshal(head, &headHex); err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.Receipt", err)
	}
	headNum, err := parseHexUint(headHex)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.Receipt", err)
	}

	var confirmations uint64
	if headNum >= blockNum {
		confirmations = headNum - blockNum + 1
	}

	success := r.Status == "0x1"
	receipt := &chain.TransactionReceipt{
		Hash:          hash,
		BlockNumber:   blockNum,
		Confirmations: confirmations,
		Success:       success,
	}
	if !success {
		receipt.FailureReason = "revert"
	}
	return receipt, nil
}

func parseHexUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	return v, err
}

// CurrentGasPrice queries eth_gasPrice, satisfying delivery.GasPricer so
// the Engine can build an ExecutionContext without knowing which provider
// family serves a chain (§4.7.1 step 4).
func (p *Provider) CurrentGasPrice(ctx context.Context) (string, error) {
	result, err := p.call(ctx, "eth_gasPrice", nil)
	if err != nil {
		return "", err
	}
	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return "", solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.CurrentGasPrice", err)
	}
	wei, err := parseHexUint(hex)
	if err != nil {
		return "", solvererr.Wrap(solvererr.KindSerialization, "jsonrpc.CurrentGasPrice", err)
	}
	return fmt.Sprintf("%d", wei), nil
}
