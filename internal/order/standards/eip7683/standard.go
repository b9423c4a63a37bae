// Package eip7683 implements the Order standard for the cross-chain intent
// format used in the end-to-end scenarios of §8: an escrow deposit on an
// origin chain, fillable by any solver who delivers the output leg on a
// destination chain.
package eip7683

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

const StandardName = "eip7683"

// FieldMap declares, per logical Order field, the JSONPath expression to
// evaluate against the raw intent payload. Configured under
// [order.implementations.eip7683] so an operator can adapt to a slightly
// different payload shape without a binary rebuild.
type FieldMap struct {
	OriginChain  string
	DestChain    string
	User         string
	InputToken   string
	InputAmount  string
	OutputToken  string
	OutputAmount string
	Recipient    string
	Deadline     string // JSONPath to a unix-seconds integer
}

// DefaultFieldMap matches the flat payload shape used by the demo harness.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		OriginChain:  "$.originChainId",
		DestChain:    "$.destChainId",
		User:         "$.user",
		InputToken:   "$.inputToken",
		InputAmount:  "$.inputAmount",
		OutputToken:  "$.outputToken",
		OutputAmount: "$.outputAmount",
		Recipient:    "$.recipient",
		Deadline:     "$.deadline",
	}
}

// Config configures the eip7683 standard: the field map plus the on-chain
// addresses needed to build fill/claim transactions and the solver's own
// address (§6, "[order.implementations.<standard>]").
type Config struct {
	Fields          FieldMap
	EscrowAddress   string // origin-chain escrow contract, claim target
	SolverAddress   string
	MinOutputAmount string // reject orders below this amount; "" disables
}

// Standard implements order.Standard for the eip7683 intent format.
type Standard struct {
	cfg Config
}

func New(cfg Config) *Standard {
	if cfg.Fields == (FieldMap{}) {
		cfg.Fields = DefaultFieldMap()
	}
	return &Standard{cfg: cfg}
}

func (s *Standard) Name() string { return StandardName }

func extract(payload interface{}, path string) (interface{}, error) {
	v, err := jsonpath.Get(path, payload)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func extractString(payload interface{}, path string) (string, error) {
	v, err := extract(payload, path)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return fmt.Sprintf("%.0f", t), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// ValidateIntent parses the intent payload per the configured field map,
// and checks schema shape, deadline, and minimum amount (§4.5). It performs
// no I/O, as required.
func (s *Standard) ValidateIntent(_ context.Context, in *domainintent.Intent) (*order.Order, error) {
	var payload interface{}
	if err := json.Unmarshal(in.Payload, &payload); err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}

	originChain, err := extractString(payload, s.cfg.Fields.OriginChain)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	destChain, err := extractString(payload, s.cfg.Fields.DestChain)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	user, err := extractString(payload, s.cfg.Fields.User)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	inputToken, err := extractString(payload, s.cfg.Fields.InputToken)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	inputAmount, err := extractString(payload, s.cfg.Fields.InputAmount)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	outputToken, err := extractString(payload, s.cfg.Fields.OutputToken)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	outputAmount, err := extractString(payload, s.cfg.Fields.OutputAmount)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	recipient, err := extractString(payload, s.cfg.Fields.Recipient)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	deadlineRaw, err := extract(payload, s.cfg.Fields.Deadline)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
	}
	deadlineSecs, ok := deadlineRaw.(float64)
	if !ok {
		return nil, solvererr.New(solvererr.KindPluginViolation, "eip7683.ValidateIntent", "deadline is not numeric")
	}
	deadline := time.Unix(int64(deadlineSecs), 0).UTC()
	if deadline.Before(in.DiscoveredAt) {
		return nil, solvererr.New(solvererr.KindPluginViolation, "eip7683.ValidateIntent", "intent deadline already passed")
	}

	if s.cfg.MinOutputAmount != "" {
		below, err := amountBelow(outputAmount, s.cfg.MinOutputAmount)
		if err != nil {
			return nil, solvererr.Wrap(solvererr.KindPluginViolation, "eip7683.ValidateIntent", err)
		}
		if below {
			return nil, solvererr.New(solvererr.KindPluginViolation, "eip7683.ValidateIntent", "output amount below configured minimum")
		}
	}

	return &order.Order{
		ID:           in.ID,
		Standard:     StandardName,
		CreatedAt:    in.DiscoveredAt,
		OriginChain:  originChain,
		DestChain:    destChain,
		User:         user,
		InputToken:   inputToken,
		InputAmount:  inputAmount,
		OutputToken:  outputToken,
		OutputAmount: outputAmount,
		Recipient:    recipient,
		Deadline:     deadline,
		StandardData: in.Payload,
	}, nil
}

// GenerateFillTransaction builds the destination-chain transfer of the
// output leg to the order's recipient.
func (s *Standard) GenerateFillTransaction(_ context.Context, ord *order.Order, params order.ExecutionParams) (*chain.Transaction, error) {
	data, err := encodeFillCalldata(ord)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "eip7683.GenerateFillTransaction", err)
	}
	return &chain.Transaction{
		ChainID:  ord.DestChain,
		To:       ord.OutputToken,
		Data:     data,
		Value:    "0",
		GasPrice: params.GasPrice,
		GasLimit: 200000,
	}, nil
}

// GenerateClaimTransaction builds the origin-chain claim against the
// escrow contract, passing along the attestation bytes the Settlement
// implementation produced.
func (s *Standard) GenerateClaimTransaction(_ context.Context, ord *order.Order, proof *chain.FillProof) (*chain.Transaction, error) {
	if proof == nil {
		return nil, solvererr.New(solvererr.KindNonRecoverable, "eip7683.GenerateClaimTransaction", "nil fill proof")
	}
	data, err := encodeClaimCalldata(ord, proof)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindNonRecoverable, "eip7683.GenerateClaimTransaction", err)
	}
	return &chain.Transaction{
		ChainID:  ord.OriginChain,
		To:       s.cfg.EscrowAddress,
		Data:     data,
		Value:    "0",
		GasLimit: 250000,
	}, nil
}

// encodeFillCalldata and encodeClaimCalldata are intentionally minimal:
// the exact ABI encoding of a specific escrow contract is out of scope
// (§1 excludes "the concrete wire format of any specific intent standard");
// they pack the fields a demo escrow contract expects as a length-prefixed
// JSON blob, matching how the jsonrpc delivery provider's encodeRawTransaction
// treats tx.Data as opaque bytes.
func encodeFillCalldata(ord *order.Order) ([]byte, error) {
	return json.Marshal(struct {
		OrderID   string `json:"order_id"`
		Recipient string `json:"recipient"`
		Token     string `json:"token"`
		Amount    string `json:"amount"`
	}{ord.ID, ord.Recipient, ord.OutputToken, ord.OutputAmount})
}

func encodeClaimCalldata(ord *order.Order, proof *chain.FillProof) ([]byte, error) {
	return json.Marshal(struct {
		OrderID     string `json:"order_id"`
		FillTxHash  string `json:"fill_tx_hash"`
		Attestation []byte `json:"attestation"`
	}{ord.ID, proof.FillTxHash.String(), proof.Attestation})
}
