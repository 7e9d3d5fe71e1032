package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
)

type hostState struct {
	led bool
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng, err := engine.NewDefault(opts...)
	require.NoError(t, err)
	return eng
}

func TestStoreFuel(t *testing.T) {
	st := New(newEngine(t), hostState{})

	fuel, err := st.Fuel()
	require.NoError(t, err)
	assert.Zero(t, fuel)

	require.NoError(t, st.SetFuel(10))
	left, err := st.Consume(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), left)

	require.NoError(t, st.AddFuel(5))
	fuel, _ = st.Fuel()
	assert.Equal(t, uint64(11), fuel)
}

func TestConsumeShortfallLeavesCounter(t *testing.T) {
	st := New(newEngine(t), hostState{})
	require.NoError(t, st.SetFuel(3))

	left, err := st.Consume(5)
	assert.ErrorIs(t, err, errors.ErrFuelExhausted)
	assert.True(t, errors.IsFuelExhausted(err))
	assert.Equal(t, uint64(3), left)

	fuel, _ := st.Fuel()
	assert.Equal(t, uint64(3), fuel)

	require.NoError(t, st.SetFuel(5))
	left, err = st.Consume(5)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestFuelDisabled(t *testing.T) {
	st := New(newEngine(t, engine.WithConsumeFuel(false)), hostState{})

	assert.ErrorIs(t, st.SetFuel(10), errors.ErrFuelDisabled)
	_, err := st.Fuel()
	assert.ErrorIs(t, err, errors.ErrFuelDisabled)
	assert.ErrorIs(t, st.AddFuel(1), errors.ErrFuelDisabled)

	_, err = st.Consume(1 << 40)
	assert.NoError(t, err)
	assert.False(t, st.Meter().Enabled())
}

func TestAddFuelSaturates(t *testing.T) {
	m := NewMeter(true)
	require.NoError(t, m.Set(math.MaxUint64-1))
	require.NoError(t, m.Add(10))
	left, _ := m.Remaining()
	assert.Equal(t, uint64(math.MaxUint64), left)
}

func TestStoreData(t *testing.T) {
	st := New(newEngine(t), hostState{})
	st.Data().led = true
	assert.True(t, st.Data().led)
}

func TestStoreBinding(t *testing.T) {
	st := New(newEngine(t), hostState{})
	owner := new(int)
	other := new(int)
	mem := NewMemory(1, 2)

	require.NoError(t, st.Bind(owner, mem))
	assert.True(t, st.Owns(owner))
	assert.False(t, st.Owns(other))
	assert.Same(t, mem, st.Memory())

	err := st.Bind(other, nil)
	assert.ErrorIs(t, err, errors.ErrInstantiation)

	st.Unbind(other)
	assert.True(t, st.Owns(owner))
	st.Unbind(owner)
	assert.Nil(t, st.Memory())

	require.NoError(t, st.Bind(other, nil))
	require.NoError(t, st.Close())
	assert.True(t, st.Closed())
	assert.False(t, st.Owns(other))
	assert.ErrorIs(t, st.Bind(owner, nil), errors.ErrNotInitialized)
	assert.NoError(t, st.Close())
}
