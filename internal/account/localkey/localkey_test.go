package localkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362b2"

func TestNewFromHexAcceptsWithAndWithoutPrefix(t *testing.T) {
	s1, err := NewFromHex(testKeyHex)
	require.NoError(t, err)

	s2, err := NewFromHex("0x" + testKeyHex)
	require.NoError(t, err)

	addr1, err := s1.Address("1")
	require.NoError(t, err)
	addr2, err := s2.Address("1")
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2)
}

func TestNewFromHexRejectsInvalidLength(t *testing.T) {
	_, err := NewFromHex("abcd")
	require.Error(t, err)
}

func TestNewFromHexRejectsNonHex(t *testing.T) {
	_, err := NewFromHex("not-hex-data-not-hex-data-not-hex-data-not-hex!")
	require.Error(t, err)
}

func TestAddressIsStableAndChainFamilySpecific(t *testing.T) {
	s, err := NewFromHex(testKeyHex)
	require.NoError(t, err)

	evmAddr, err := s.Address("1")
	require.NoError(t, err)
	assert.Contains(t, evmAddr, "0x")

	evmAddrAgain, err := s.Address("137")
	require.NoError(t, err)
	assert.Equal(t, evmAddr, evmAddrAgain, "evm address must not vary with chain id")

	neoAddr, err := s.Address("neo-mainnet")
	require.NoError(t, err)
	assert.NotEqual(t, evmAddr, neoAddr)
	assert.NotContains(t, neoAddr, "0x")
}

func TestSignTransactionIsDeterministicPerInput(t *testing.T) {
	s, err := NewFromHex(testKeyHex)
	require.NoError(t, err)

	tx := &chain.Transaction{ChainID: "1", To: "0xabc", Data: []byte("payload"), Value: "0", GasPrice: "10"}

	sig1, err := s.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	sig2, err := s.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	other := &chain.Transaction{ChainID: "1", To: "0xabc", Data: []byte("different"), Value: "0", GasPrice: "10"}
	sig3, err := s.SignTransaction(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)
}
