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

func TestDenseKnownValues(t *testing.T) {
	input, err := tensor.FromSlice([]float64{
		1, 2,
		3, 4,
	}, tensor.Shape{2, 2})
	require.NoError(t, err)

	weight, err := tensor.FromSlice([]float64{
		1, 0,
		0, 1,
		1, 1,
	}, tensor.Shape{3, 2})
	require.NoError(t, err)

	bias, err := tensor.FromSlice([]float64{10, 20, 30}, tensor.Shape{3})
	require.NoError(t, err)

	out := nn.Dense(input, weight, bias)

	require.True(t, out.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float64{11, 22, 33, 13, 24, 37}, out.Data())
}

func TestDenseFeatureMismatchPanics(t *testing.T) {
	input := tensor.New(tensor.Shape{1, 4})
	weight := tensor.New(tensor.Shape{2, 3})
	assert.Panics(t, func() {
		nn.Dense(input, weight, nil)
	})
}

func TestDenseGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(13))

	inputShape := tensor.Shape{3, 5}
	weightShape := tensor.Shape{4, 5}

	input := randomTensor(rng, inputShape)
	weight := randomTensor(rng, weightShape)
	bias := randomTensor(rng, tensor.Shape{4})
	coeff := randomTensor(rng, tensor.Shape{3, 4})

	loss := func(x, w, b *tensor.Tensor) float64 {
		out := nn.Dense(x, w, b)
		sum := 0.0
		for i, v := range out.Data() {
			sum += v * coeff.Data()[i]
		}
		return sum
	}

	inputGrad := nn.DenseInputBackward(coeff, weight)
	weightGrad := nn.DenseWeightBackward(input, coeff)
	biasGrad := nn.DenseBiasBackward(coeff)

	settings := &fd.Settings{Formula: fd.Central}

	wantInputGrad := fd.Gradient(nil, func(x []float64) float64 {
		in, _ := tensor.FromSlice(x, inputShape)
		return loss(in, weight, bias)
	}, input.Data(), settings)
	assert.InDeltaSlice(t, wantInputGrad, inputGrad.Data(), 1e-6, "input gradient")

	wantWeightGrad := fd.Gradient(nil, func(x []float64) float64 {
		w, _ := tensor.FromSlice(x, weightShape)
		return loss(input, w, bias)
	}, weight.Data(), settings)
	assert.InDeltaSlice(t, wantWeightGrad, weightGrad.Data(), 1e-6, "weight gradient")

	wantBiasGrad := fd.Gradient(nil, func(x []float64) float64 {
		b, _ := tensor.FromSlice(x, tensor.Shape{4})
		return loss(input, weight, b)
	}, bias.Data(), settings)
	assert.InDeltaSlice(t, wantBiasGrad, biasGrad.Data(), 1e-6, "bias gradient")
}
