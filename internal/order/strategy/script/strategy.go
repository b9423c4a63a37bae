// Package script is an enrichment execution strategy that evaluates a
// user-supplied JavaScript expression against the order and its execution
// context, for operators who want to tune decision logic without a binary
// rebuild (§4.5). The script is sandboxed via goja and given no ambient I/O
// capability, preserving §9's "strategy as a pure function of
// ExecutionContext."
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/r3e-network/intent-solver/internal/domain/order"
)

// Config configures the script strategy.
type Config struct {
	// Source is a JavaScript expression (or function-body-less script)
	// that must assign to a variable named `result`, an object of the
	// shape { action: "execute"|"skip"|"defer", reason: string, gasPrice: string, deferSeconds: number }.
	Source string
}

// Strategy evaluates Source against the order/context on every call. A
// fresh goja.Runtime is used per call so scripts cannot retain state
// between orders, keeping the strategy a pure function of its inputs.
type Strategy struct {
	source string
}

func New(cfg Config) *Strategy {
	return &Strategy{source: cfg.Source}
}

type scriptOrder struct {
	ID           string `json:"id"`
	Standard     string `json:"standard"`
	OriginChain  string `json:"originChain"`
	DestChain    string `json:"destChain"`
	InputToken   string `json:"inputToken"`
	InputAmount  string `json:"inputAmount"`
	OutputToken  string `json:"outputToken"`
	OutputAmount string `json:"outputAmount"`
}

type scriptContext struct {
	DestGasPrice string            `json:"destGasPrice"`
	NowUnix      int64             `json:"nowUnix"`
	Balances     map[string]string `json:"balances"`
}

type scriptResult struct {
	Action       string `json:"action"`
	Reason       string `json:"reason"`
	GasPrice     string `json:"gasPrice"`
	DeferSeconds int64  `json:"deferSeconds"`
}

// ShouldExecute runs the configured script. Any evaluation failure (syntax
// error, missing `result`, unknown action) is treated as Skip rather than
// propagated as a fatal error, since a misconfigured script must not take
// down the Engine's event loop.
func (s *Strategy) ShouldExecute(_ context.Context, ord *order.Order, ec *order.ExecutionContext) order.ExecutionDecision {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := vm.Set("order", scriptOrder{
		ID:           ord.ID,
		Standard:     ord.Standard,
		OriginChain:  ord.OriginChain,
		DestChain:    ord.DestChain,
		InputToken:   ord.InputToken,
		InputAmount:  ord.InputAmount,
		OutputToken:  ord.OutputToken,
		OutputAmount: ord.OutputAmount,
	}); err != nil {
		return order.Skip("script strategy: " + err.Error())
	}
	if err := vm.Set("context", scriptContext{
		DestGasPrice: ec.DestGasPrice,
		NowUnix:      ec.Now.Unix(),
		Balances:     ec.SolverBalances,
	}); err != nil {
		return order.Skip("script strategy: " + err.Error())
	}

	v, err := vm.RunString(s.source + "\nresult;")
	if err != nil {
		return order.Skip(fmt.Sprintf("script strategy evaluation failed: %v", err))
	}

	var res scriptResult
	if err := vm.ExportTo(v, &res); err != nil {
		return order.Skip(fmt.Sprintf("script strategy result malformed: %v", err))
	}

	switch res.Action {
	case "execute":
		gasPrice := res.GasPrice
		if gasPrice == "" {
			gasPrice = ec.DestGasPrice
		}
		return order.Execute(order.ExecutionParams{GasPrice: gasPrice})
	case "skip":
		return order.Skip(res.Reason)
	case "defer":
		after := time.Duration(res.DeferSeconds) * time.Second
		if after <= 0 {
			after = time.Minute
		}
		return order.Defer(after)
	default:
		return order.Skip("script strategy: unknown action " + res.Action)
	}
}
