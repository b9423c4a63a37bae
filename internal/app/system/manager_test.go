package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name        string
	startErr    error
	stopErr     error
	startCalled int
	stopCalled  int
	startOrder  *[]string
	stopOrder   *[]string
}

func (s *recordingService) Name() string { return s.name }
func (s *recordingService) Start(ctx context.Context) error {
	s.startCalled++
	if s.startOrder != nil {
		*s.startOrder = append(*s.startOrder, s.name)
	}
	return s.startErr
}
func (s *recordingService) Stop(ctx context.Context) error {
	s.stopCalled++
	if s.stopOrder != nil {
		*s.stopOrder = append(*s.stopOrder, s.name)
	}
	return s.stopErr
}

func TestManagerStartsAndStopsAllServices(t *testing.T) {
	m := NewManager()
	a := &recordingService{name: "a"}
	b := &recordingService{name: "b"}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, a.startCalled)
	assert.Equal(t, 1, b.startCalled)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 1, a.stopCalled)
	assert.Equal(t, 1, b.stopCalled)
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	m := NewManager()
	var startOrder, stopOrder []string
	a := &recordingService{name: "a", startOrder: &startOrder, stopOrder: &stopOrder}
	b := &recordingService{name: "b", startOrder: &startOrder, stopOrder: &stopOrder}
	c := &recordingService{name: "c", startOrder: &startOrder, stopOrder: &stopOrder}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	require.NoError(t, m.Register(c))

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, startOrder)
	assert.Equal(t, []string{"c", "b", "a"}, stopOrder)
}

func TestManagerRejectsDuplicateName(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a"}))
	err := m.Register(&recordingService{name: "a"})
	require.Error(t, err)
}

func TestManagerRejectsNilService(t *testing.T) {
	m := NewManager()
	err := m.Register(nil)
	require.Error(t, err)
}

func TestManagerStartStopsAlreadyStartedOnFailure(t *testing.T) {
	m := NewManager()
	var stopOrder []string
	a := &recordingService{name: "a", stopOrder: &stopOrder}
	failing := &recordingService{name: "b", startErr: assertAnError()}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(failing))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, stopOrder, "service a must be stopped after b's Start failed")
}

func TestManagerStopCollectsAllErrorsRatherThanAborting(t *testing.T) {
	m := NewManager()
	a := &recordingService{name: "a", stopErr: assertAnError()}
	b := &recordingService{name: "b", stopErr: assertAnError()}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	require.NoError(t, m.Start(context.Background()))

	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, a.stopCalled)
	assert.Equal(t, 1, b.stopCalled)
}

func TestManagerRegisterAfterStartStartsImmediately(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start(context.Background()))

	late := &recordingService{name: "late"}
	require.NoError(t, m.Register(late))
	assert.Equal(t, 1, late.startCalled)
}

func assertAnError() error {
	return &testError{"boom"}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
