package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

type fakeSigner struct{}

func (fakeSigner) Address(_ string) (string, error) { return "0xsolver", nil }
func (fakeSigner) SignTransaction(_ context.Context, _ *chain.Transaction) (chain.Signature, error) {
	return chain.Signature("sig"), nil
}

type rpcHandlerFunc func(method string, params []interface{}) (interface{}, *rpcErrorBody)

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newRPCServer(t *testing.T, handler rpcHandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpcRequest
		require.NoError(t, json.Unmarshal(raw, &req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := struct {
			Result interface{}   `json:"result,omitempty"`
			Error  *rpcErrorBody `json:"error,omitempty"`
		}{Result: result, Error: rpcErr}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCurrentGasPrice(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		assert.Equal(t, "eth_gasPrice", method)
		return "0x3b9aca00", nil // 1_000_000_000 wei
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	price, err := p.CurrentGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000000000", price)
}

func TestSubmitReturnsTransactionHash(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		assert.Equal(t, "eth_sendRawTransaction", method)
		return "0xdeadbeef", nil
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	hash, err := p.Submit(context.Background(), fakeSigner{}, &chain.Transaction{ChainID: "1", To: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, chain.TransactionHash("0xdeadbeef"), hash)
}

func TestReceiptComputesConfirmations(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		switch method {
		case "eth_getTransactionReceipt":
			return map[string]string{
				"transactionHash": "0xhash",
				"blockNumber":     "0x64", // 100
				"status":          "0x1",
			}, nil
		case "eth_blockNumber":
			return "0x67", nil // 103
		}
		t.Fatalf("unexpected method %s", method)
		return nil, nil
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	receipt, err := p.Receipt(context.Background(), chain.TransactionHash("0xhash"))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success)
	assert.Equal(t, uint64(100), receipt.BlockNumber)
	assert.Equal(t, uint64(4), receipt.Confirmations) // 103 - 100 + 1
}

func TestReceiptNotYetMinedReturnsNilWithoutError(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		return nil, nil
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	receipt, err := p.Receipt(context.Background(), chain.TransactionHash("0xhash"))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestReceiptFailedTransaction(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		switch method {
		case "eth_getTransactionReceipt":
			return map[string]string{"transactionHash": "0xhash", "blockNumber": "0x1", "status": "0x0"}, nil
		case "eth_blockNumber":
			return "0x1", nil
		}
		return nil, nil
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	receipt, err := p.Receipt(context.Background(), chain.TransactionHash("0xhash"))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Success)
	assert.Equal(t, "revert", receipt.FailureReason)
}

func TestCallSurfacesRPCErrorAsNonRecoverable(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcErrorBody) {
		return nil, &rpcErrorBody{Code: -32000, Message: "insufficient funds"}
	})
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	_, err := p.CurrentGasPrice(context.Background())
	require.Error(t, err)
	assert.Equal(t, solvererr.KindNonRecoverable, solvererr.KindOf(err))
}

func TestCallSurfaces5xxAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(Config{ChainID: "1", RPCURL: srv.URL})
	_, err := p.CurrentGasPrice(context.Background())
	require.Error(t, err)
	assert.Equal(t, solvererr.KindTransient, solvererr.KindOf(err))
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(Config{ChainID: "1", RPCURL: "http://localhost"})
	assert.Equal(t, 3*time.Second, p.PollInterval())
	assert.Equal(t, "1", p.ChainID())
}
