// Package localkey is the default Account implementation: a single
// secp256k1 private key held in process memory. Address derivation follows
// the EVM convention (Keccak-256 of the uncompressed public key, last 20
// bytes); non-EVM chain families that need base58-style addresses encode
// through AddressBase58 instead.
package localkey

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Signer wraps a single secp256k1 key. Signing only reads the (immutable)
// key, so a Signer is safe for concurrent use without additional locking;
// the mutex here exists solely to protect lazily-memoized address strings.
type Signer struct {
	key *secp256k1.PrivateKey

	mu           sync.Mutex
	evmAddress   string
	b58Addresses map[string]string
}

// NewFromHex constructs a Signer from a hex-encoded private key, with or
// without a leading "0x".
func NewFromHex(hexKey string) (*Signer, error) {
	hexKey = trimHexPrefix(hexKey)
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "localkey.NewFromHex", fmt.Errorf("invalid private key: %w", err))
	}
	if len(raw) != 32 {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "localkey.NewFromHex", "private key must be 32 bytes")
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	return &Signer{key: key, b58Addresses: make(map[string]string)}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Address returns the solver's address. EVM-family chain ids return the
// Keccak-256-derived hex address; any other chain id returns a base58
// encoding of the uncompressed public key, since the solver's EVM address
// and a NEO/Solana-style address are not interchangeable.
func (s *Signer) Address(chainID string) (string, error) {
	if isEVMChain(chainID) {
		return s.evmAddr(), nil
	}
	return s.base58Addr(chainID), nil
}

func (s *Signer) evmAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evmAddress != "" {
		return s.evmAddress
	}
	pub := s.key.PubKey().SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:]) // drop the 0x04 prefix byte
	sum := h.Sum(nil)
	s.evmAddress = "0x" + hex.EncodeToString(sum[len(sum)-20:])
	return s.evmAddress
}

func (s *Signer) base58Addr(chainID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr, ok := s.b58Addresses[chainID]; ok {
		return addr
	}
	pub := s.key.PubKey().SerializeCompressed()
	addr := base58.Encode(pub)
	s.b58Addresses[chainID] = addr
	return addr
}

func isEVMChain(chainID string) bool {
	// Chain ids used by the jsonrpc delivery provider are decimal EVM
	// chain ids; anything else (e.g. "neo-mainnet") is not EVM-family.
	for _, r := range chainID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return chainID != ""
}

// SignTransaction signs the transaction hash with ECDSA over secp256k1.
// The wire-level signed-transaction encoding is the delivery provider's
// job; this returns the raw (r, s, v)-style signature bytes the provider
// assembles into its chain's native format.
func (s *Signer) SignTransaction(ctx context.Context, tx *chain.Transaction) (chain.Signature, error) {
	digest := hashTransaction(tx)
	sig := ecdsaSignCompact(s.key, digest)
	return chain.Signature(sig), nil
}

func hashTransaction(tx *chain.Transaction) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(tx.ChainID))
	h.Write([]byte(tx.To))
	h.Write(tx.Data)
	h.Write([]byte(tx.Value))
	h.Write([]byte(tx.GasPrice))
	return h.Sum(nil)
}

func ecdsaSignCompact(key *secp256k1.PrivateKey, digest []byte) []byte {
	sig := ecdsa.Sign(key, digest)
	return sig.Serialize()
}

var _ account.Account = (*Signer)(nil)
