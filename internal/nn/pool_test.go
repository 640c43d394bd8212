package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"digitnet/internal/nn"
	"digitnet/internal/tensor"
)

func TestAvgPool2DKnownValues(t *testing.T) {
	input, err := tensor.FromSlice([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 1, 4, 4})
	require.NoError(t, err)

	out := nn.AvgPool2D(input, 2, 2)

	require.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float64{3.5, 5.5, 11.5, 13.5}, out.Data())
}

func TestAvgPool2DHalvesSpatialDims(t *testing.T) {
	input := tensor.New(tensor.Shape{4, 32, 28, 28})
	out := nn.AvgPool2D(input, 2, 2)
	assert.True(t, out.Shape().Equal(tensor.Shape{4, 32, 14, 14}))
}

func TestAvgPool2DBackwardDistributesEvenly(t *testing.T) {
	grad, err := tensor.FromSlice([]float64{4, 8}, tensor.Shape{1, 1, 1, 2})
	require.NoError(t, err)

	inputGrad := nn.AvgPool2DBackward(grad, tensor.Shape{1, 1, 2, 4}, 2, 2)

	// Each upstream element spreads uniformly over its 2x2 window, scaled
	// by 1/4.
	want := []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
	}
	assert.Equal(t, want, inputGrad.Data())
}

func TestAvgPool2DGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	inputShape := tensor.Shape{2, 3, 4, 4}
	input := randomTensor(rng, inputShape)

	outShape := nn.AvgPool2D(input, 2, 2).Shape()
	coeff := randomTensor(rng, outShape)

	inputGrad := nn.AvgPool2DBackward(coeff, inputShape, 2, 2)

	want := fd.Gradient(nil, func(x []float64) float64 {
		in, _ := tensor.FromSlice(x, inputShape)
		out := nn.AvgPool2D(in, 2, 2)
		sum := 0.0
		for i, v := range out.Data() {
			sum += v * coeff.Data()[i]
		}
		return sum
	}, input.Data(), &fd.Settings{Formula: fd.Central})

	assert.InDeltaSlice(t, want, inputGrad.Data(), 1e-6)
}
