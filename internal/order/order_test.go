package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	domainorder "github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

type fakeStandard struct {
	name string
}

func (f *fakeStandard) Name() string { return f.name }
func (f *fakeStandard) ValidateIntent(ctx context.Context, in *domainintent.Intent) (*domainorder.Order, error) {
	return &domainorder.Order{ID: in.ID, Standard: f.name}, nil
}
func (f *fakeStandard) GenerateFillTransaction(ctx context.Context, ord *domainorder.Order, params domainorder.ExecutionParams) (*chain.Transaction, error) {
	return &chain.Transaction{ChainID: ord.DestChain}, nil
}
func (f *fakeStandard) GenerateClaimTransaction(ctx context.Context, ord *domainorder.Order, proof *chain.FillProof) (*chain.Transaction, error) {
	return &chain.Transaction{ChainID: ord.OriginChain}, nil
}

type fakeStrategy struct {
	decision domainorder.ExecutionDecision
}

func (f *fakeStrategy) ShouldExecute(ctx context.Context, ord *domainorder.Order, ec *domainorder.ExecutionContext) domainorder.ExecutionDecision {
	return f.decision
}

func TestRegistryDispatchesToRegisteredStandard(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeStandard{name: "eip7683"})

	ord, err := reg.ValidateIntent(context.Background(), &domainintent.Intent{ID: "intent-1", Standard: "eip7683"})
	require.NoError(t, err)
	assert.Equal(t, "intent-1", ord.ID)
}

func TestRegistryUnknownStandardIsPluginViolation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeStandard{name: "eip7683"})

	_, err := reg.ValidateIntent(context.Background(), &domainintent.Intent{ID: "intent-1", Standard: "unknown"})
	require.Error(t, err)
	assert.Equal(t, solvererr.KindPluginViolation, solvererr.KindOf(err))
}

func TestRegistryShouldExecuteWithNoStrategyIsConfigError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.ShouldExecute(context.Background(), &domainorder.Order{}, &domainorder.ExecutionContext{})
	require.Error(t, err)
	assert.Equal(t, solvererr.KindConfig, solvererr.KindOf(err))
}

func TestRegistryShouldExecuteDispatchesToStrategy(t *testing.T) {
	reg := NewRegistry()
	reg.SetStrategy(&fakeStrategy{decision: domainorder.Skip("test")})

	decision, err := reg.ShouldExecute(context.Background(), &domainorder.Order{}, &domainorder.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, domainorder.DecisionSkip, decision.Kind)
}

func TestRegisterOverwritesSameName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeStandard{name: "eip7683"})
	reg.Register(&fakeStandard{name: "eip7683"}) // same name, should not error or duplicate

	ord, err := reg.ValidateIntent(context.Background(), &domainintent.Intent{ID: "x", Standard: "eip7683"})
	require.NoError(t, err)
	assert.Equal(t, "eip7683", ord.Standard)
}
