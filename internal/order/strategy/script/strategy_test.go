package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/r3e-network/intent-solver/internal/domain/order"
)

func TestShouldExecuteScriptExecute(t *testing.T) {
	s := New(Config{Source: `var result = {action: "execute", gasPrice: "42"};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{DestGasPrice: "10"})
	assert.Equal(t, order.DecisionExecute, decision.Kind)
	assert.Equal(t, "42", decision.Params.GasPrice)
}

func TestShouldExecuteScriptExecuteFallsBackToContextGasPrice(t *testing.T) {
	s := New(Config{Source: `var result = {action: "execute"};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{DestGasPrice: "10"})
	assert.Equal(t, order.DecisionExecute, decision.Kind)
	assert.Equal(t, "10", decision.Params.GasPrice)
}

func TestShouldExecuteScriptSkip(t *testing.T) {
	s := New(Config{Source: `var result = {action: "skip", reason: "not worth it"};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{})
	assert.Equal(t, order.DecisionSkip, decision.Kind)
	assert.Equal(t, "not worth it", decision.Reason)
}

func TestShouldExecuteScriptDefer(t *testing.T) {
	s := New(Config{Source: `var result = {action: "defer", deferSeconds: 90};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{})
	assert.Equal(t, order.DecisionDefer, decision.Kind)
	assert.Equal(t, 90*time.Second, decision.After)
}

func TestShouldExecuteScriptDeferDefaultsWhenZero(t *testing.T) {
	s := New(Config{Source: `var result = {action: "defer"};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{})
	assert.Equal(t, order.DecisionDefer, decision.Kind)
	assert.Equal(t, time.Minute, decision.After)
}

func TestShouldExecuteScriptSyntaxErrorDegradesToSkip(t *testing.T) {
	s := New(Config{Source: `this is not valid javascript {{{`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{})
	assert.Equal(t, order.DecisionSkip, decision.Kind)
}

func TestShouldExecuteScriptUnknownActionDegradesToSkip(t *testing.T) {
	s := New(Config{Source: `var result = {action: "explode"};`})
	decision := s.ShouldExecute(context.Background(), &order.Order{}, &order.ExecutionContext{})
	assert.Equal(t, order.DecisionSkip, decision.Kind)
}

func TestShouldExecuteScriptCanReadOrderFields(t *testing.T) {
	s := New(Config{Source: `
		var result;
		if (order.inputAmount === "1000") {
			result = {action: "execute"};
		} else {
			result = {action: "skip", reason: "mismatch"};
		}
	`})
	decision := s.ShouldExecute(context.Background(), &order.Order{InputAmount: "1000"}, &order.ExecutionContext{DestGasPrice: "1"})
	assert.Equal(t, order.DecisionExecute, decision.Kind)
}
