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

func TestConv2DKnownValues(t *testing.T) {
	// 1x1x3x3 input, single 2x2 kernel of ones, no padding:
	// each output element is the sum of a 2x2 window.
	input, err := tensor.FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	require.NoError(t, err)

	kernel := tensor.Full(tensor.Shape{1, 1, 2, 2}, 1.0)
	bias := tensor.New(tensor.Shape{1})

	out := nn.Conv2D(input, kernel, bias, 1, 0)

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float64{12, 16, 24, 28}, out.Data())
}

func TestConv2DBias(t *testing.T) {
	input := tensor.New(tensor.Shape{1, 1, 2, 2})
	kernel := tensor.New(tensor.Shape{3, 1, 1, 1})
	bias, err := tensor.FromSlice([]float64{0.5, -1, 2}, tensor.Shape{3})
	require.NoError(t, err)

	out := nn.Conv2D(input, kernel, bias, 1, 0)

	// Zero input and zero kernel: the output is the broadcast bias.
	require.True(t, out.Shape().Equal(tensor.Shape{1, 3, 2, 2}))
	want := []float64{0.5, 0.5, 0.5, 0.5, -1, -1, -1, -1, 2, 2, 2, 2}
	assert.Equal(t, want, out.Data())
}

func TestConv2DSamePadding(t *testing.T) {
	// 3x3 kernel with padding 1 preserves spatial dimensions.
	input := tensor.New(tensor.Shape{2, 1, 28, 28})
	kernel := tensor.New(tensor.Shape{32, 1, 3, 3})
	bias := tensor.New(tensor.Shape{32})

	out := nn.Conv2D(input, kernel, bias, 1, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 32, 28, 28}))
}

func TestConv2DShapeMismatchPanics(t *testing.T) {
	input := tensor.New(tensor.Shape{1, 2, 4, 4})
	kernel := tensor.New(tensor.Shape{1, 3, 3, 3}) // 3 kernel channels vs 2 input channels
	assert.Panics(t, func() {
		nn.Conv2D(input, kernel, nil, 1, 0)
	})
}

// TestConv2DGradients checks the analytic backward passes against central
// finite differences of the forward pass.
func TestConv2DGradients(t *testing.T) {
	const (
		stride  = 1
		padding = 1
	)
	rng := rand.New(rand.NewSource(7))

	inputShape := tensor.Shape{2, 2, 4, 4}
	kernelShape := tensor.Shape{3, 2, 3, 3}

	input := randomTensor(rng, inputShape)
	kernel := randomTensor(rng, kernelShape)
	bias := randomTensor(rng, tensor.Shape{3})

	// Probe loss: a fixed random linear functional of the output, so that
	// dL/dout is simply the coefficient tensor.
	outShape := nn.Conv2D(input, kernel, bias, stride, padding).Shape()
	coeff := randomTensor(rng, outShape)

	loss := func(in, k, b *tensor.Tensor) float64 {
		out := nn.Conv2D(in, k, b, stride, padding)
		sum := 0.0
		for i, v := range out.Data() {
			sum += v * coeff.Data()[i]
		}
		return sum
	}

	inputGrad := nn.Conv2DInputBackward(input, kernel, coeff, stride, padding)
	kernelGrad := nn.Conv2DKernelBackward(input, kernel, coeff, stride, padding)
	biasGrad := nn.Conv2DBiasBackward(coeff)

	settings := &fd.Settings{Formula: fd.Central}

	wantInputGrad := fd.Gradient(nil, func(x []float64) float64 {
		in, _ := tensor.FromSlice(x, inputShape)
		return loss(in, kernel, bias)
	}, input.Data(), settings)
	assert.InDeltaSlice(t, wantInputGrad, inputGrad.Data(), 1e-6, "input gradient")

	wantKernelGrad := fd.Gradient(nil, func(x []float64) float64 {
		k, _ := tensor.FromSlice(x, kernelShape)
		return loss(input, k, bias)
	}, kernel.Data(), settings)
	assert.InDeltaSlice(t, wantKernelGrad, kernelGrad.Data(), 1e-6, "kernel gradient")

	wantBiasGrad := fd.Gradient(nil, func(x []float64) float64 {
		b, _ := tensor.FromSlice(x, tensor.Shape{3})
		return loss(input, kernel, b)
	}, bias.Data(), settings)
	assert.InDeltaSlice(t, wantBiasGrad, biasGrad.Data(), 1e-6, "bias gradient")
}

func randomTensor(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	t := tensor.New(shape)
	data := t.Data()
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return t
}
