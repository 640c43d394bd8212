package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitnet/internal/optim"
	"digitnet/internal/tensor"
)

func TestInitZeroVelocity(t *testing.T) {
	params := []*tensor.Tensor{
		tensor.Full(tensor.Shape{2, 2}, 1.0),
		tensor.Full(tensor.Shape{3}, 2.0),
	}

	state := optim.SGD{LR: 0.1}.Init(params)

	require.Len(t, state.Velocity, 2)
	assert.True(t, state.Velocity[0].Shape().Equal(tensor.Shape{2, 2}))
	assert.True(t, state.Velocity[1].Shape().Equal(tensor.Shape{3}))
	for _, v := range state.Velocity {
		for _, x := range v.Data() {
			assert.Zero(t, x)
		}
	}
}

func TestApplyFirstStepIsScaledGradient(t *testing.T) {
	sgd := optim.SGD{LR: 0.5, Momentum: 0.9}
	params := []*tensor.Tensor{tensor.Full(tensor.Shape{3}, 1.0)}
	grads := []*tensor.Tensor{mustTensor(t, []float64{1, 2, 4}, tensor.Shape{3})}

	state := sgd.Init(params)
	_, newParams := sgd.Apply(grads, state, params)

	// Zero initial velocity: p' = p - lr * g.
	assert.Equal(t, []float64{0.5, 0, -1}, newParams[0].Data())
}

func TestApplyMomentumAccumulates(t *testing.T) {
	sgd := optim.SGD{LR: 0.1, Momentum: 0.5}
	params := []*tensor.Tensor{mustTensor(t, []float64{1}, tensor.Shape{1})}
	grads := []*tensor.Tensor{mustTensor(t, []float64{2}, tensor.Shape{1})}

	state := sgd.Init(params)

	// Step 1: v = 2, p = 1 - 0.2 = 0.8
	state, params = sgd.Apply(grads, state, params)
	assert.InDelta(t, 2.0, state.Velocity[0].Data()[0], 1e-12)
	assert.InDelta(t, 0.8, params[0].Data()[0], 1e-12)

	// Step 2: v = 0.5*2 + 2 = 3, p = 0.8 - 0.3 = 0.5
	state, params = sgd.Apply(grads, state, params)
	assert.InDelta(t, 3.0, state.Velocity[0].Data()[0], 1e-12)
	assert.InDelta(t, 0.5, params[0].Data()[0], 1e-12)
}

func TestApplyDoesNotMutateInputs(t *testing.T) {
	sgd := optim.SGD{LR: 0.1, Momentum: 0.9}
	params := []*tensor.Tensor{mustTensor(t, []float64{1, 2}, tensor.Shape{2})}
	grads := []*tensor.Tensor{mustTensor(t, []float64{3, 4}, tensor.Shape{2})}
	state := sgd.Init(params)

	newState, newParams := sgd.Apply(grads, state, params)

	assert.Equal(t, []float64{1, 2}, params[0].Data())
	assert.Equal(t, []float64{3, 4}, grads[0].Data())
	assert.Equal(t, []float64{0, 0}, state.Velocity[0].Data())
	assert.NotSame(t, params[0], newParams[0])
	assert.NotSame(t, state.Velocity[0], newState.Velocity[0])
}

func TestApplyLengthMismatchPanics(t *testing.T) {
	sgd := optim.SGD{LR: 0.1}
	params := []*tensor.Tensor{tensor.New(tensor.Shape{2})}
	state := sgd.Init(params)

	assert.Panics(t, func() {
		sgd.Apply(nil, state, params)
	})
}

func TestApplyShapeMismatchPanics(t *testing.T) {
	sgd := optim.SGD{LR: 0.1}
	params := []*tensor.Tensor{tensor.New(tensor.Shape{2})}
	grads := []*tensor.Tensor{tensor.New(tensor.Shape{3})}
	state := sgd.Init(params)

	assert.Panics(t, func() {
		sgd.Apply(grads, state, params)
	})
}

func mustTensor(t *testing.T, data []float64, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	out, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return out
}
