// Package model defines the fixed convolutional network used for digit
// classification and its hand-derived backward pass.
//
// Topology:
//
//	conv 1->32 3x3 pad 1 -> ReLU -> avgpool 2x2
//	conv 32->64 3x3 pad 1 -> ReLU -> avgpool 2x2
//	flatten -> dense 3136->256 -> ReLU -> dense 256->10 -> log-softmax
//
// All operations are pure: forward and gradient computation never mutate the
// parameters or the inputs.
package model

import (
	"fmt"
	"math/rand"

	"digitnet/internal/nn"
	"digitnet/internal/tensor"
)

const (
	// ImageSize is the expected height and width of input images.
	ImageSize = 28
	// NumClasses is the number of output classes.
	NumClasses = 10

	conv1Filters = 32
	conv2Filters = 64
	kernelSize   = 3
	padding      = 1
	poolSize     = 2
	hiddenSize   = 256
)

// SampleShape is the per-sample input shape for MNIST: one channel, 28x28.
var SampleShape = tensor.Shape{1, ImageSize, ImageSize}

// flattenSize computes the length of the flattened feature vector after both
// conv/pool stages for a given per-sample input shape [1, H, W]. Two 2x2
// pools quarter each spatial dimension, so 28 -> 14 -> 7.
func flattenSize(sampleShape tensor.Shape) int {
	if len(sampleShape) != 3 || sampleShape[0] != 1 {
		panic(fmt.Sprintf("model: sample shape must be [1, H, W], got %v", sampleShape))
	}
	h, w := sampleShape[1], sampleShape[2]
	if h%(poolSize*poolSize) != 0 || w%(poolSize*poolSize) != 0 {
		panic(fmt.Sprintf("model: sample dimensions %dx%d not divisible by %d", h, w, poolSize*poolSize))
	}
	return conv2Filters * (h / poolSize / poolSize) * (w / poolSize / poolSize)
}

// Params holds every learnable tensor of the network. Values are treated as
// immutable: the optimizer produces a new Params rather than updating one in
// place.
type Params struct {
	Conv1Weight *tensor.Tensor // [32, 1, 3, 3]
	Conv1Bias   *tensor.Tensor // [32]
	Conv2Weight *tensor.Tensor // [64, 32, 3, 3]
	Conv2Bias   *tensor.Tensor // [64]
	FC1Weight   *tensor.Tensor // [256, 3136]
	FC1Bias     *tensor.Tensor // [256]
	FC2Weight   *tensor.Tensor // [10, 256]
	FC2Bias     *tensor.Tensor // [10]
}

// Tensors returns the parameter tensors in a fixed order. Gradient lists and
// optimizer state use the same order, so index i always refers to the same
// parameter across all three.
func (p Params) Tensors() []*tensor.Tensor {
	return []*tensor.Tensor{
		p.Conv1Weight, p.Conv1Bias,
		p.Conv2Weight, p.Conv2Bias,
		p.FC1Weight, p.FC1Bias,
		p.FC2Weight, p.FC2Bias,
	}
}

// ParamsFromTensors rebuilds a Params from a tensor list in Tensors order.
func ParamsFromTensors(tensors []*tensor.Tensor) Params {
	if len(tensors) != 8 {
		panic(fmt.Sprintf("model: expected 8 parameter tensors, got %d", len(tensors)))
	}
	return Params{
		Conv1Weight: tensors[0], Conv1Bias: tensors[1],
		Conv2Weight: tensors[2], Conv2Bias: tensors[3],
		FC1Weight: tensors[4], FC1Bias: tensors[5],
		FC2Weight: tensors[6], FC2Bias: tensors[7],
	}
}

// Init creates the network parameters from a seed and a per-sample input
// shape, which only determines array sizes. Weights use LeCun normal
// initialization, biases start at zero, so the initial loss on any input is
// close to ln(NumClasses).
func Init(seed int64, sampleShape tensor.Shape) Params {
	flat := flattenSize(sampleShape)
	rng := rand.New(rand.NewSource(seed))

	return Params{
		Conv1Weight: nn.LeCunNormal(rng, 1*kernelSize*kernelSize,
			tensor.Shape{conv1Filters, 1, kernelSize, kernelSize}),
		Conv1Bias: tensor.New(tensor.Shape{conv1Filters}),

		Conv2Weight: nn.LeCunNormal(rng, conv1Filters*kernelSize*kernelSize,
			tensor.Shape{conv2Filters, conv1Filters, kernelSize, kernelSize}),
		Conv2Bias: tensor.New(tensor.Shape{conv2Filters}),

		FC1Weight: nn.LeCunNormal(rng, flat, tensor.Shape{hiddenSize, flat}),
		FC1Bias:   tensor.New(tensor.Shape{hiddenSize}),

		FC2Weight: nn.LeCunNormal(rng, hiddenSize, tensor.Shape{NumClasses, hiddenSize}),
		FC2Bias:   tensor.New(tensor.Shape{NumClasses}),
	}
}

// activations caches every intermediate of a forward pass that the backward
// pass needs.
type activations struct {
	input *tensor.Tensor // [B, 1, 28, 28]

	conv1Out *tensor.Tensor // pre-activation, [B, 32, 28, 28]
	relu1Out *tensor.Tensor // [B, 32, 28, 28]
	pool1Out *tensor.Tensor // [B, 32, 14, 14]

	conv2Out *tensor.Tensor // pre-activation, [B, 64, 14, 14]
	relu2Out *tensor.Tensor // [B, 64, 14, 14]
	pool2Out *tensor.Tensor // [B, 64, 7, 7]

	flat   *tensor.Tensor // [B, 3136]
	fc1Out *tensor.Tensor // pre-activation, [B, 256]
	fc1Act *tensor.Tensor // [B, 256]
	fc2Out *tensor.Tensor // logits, [B, 10]

	logProbs *tensor.Tensor // [B, 10]
}

func forward(p Params, images *tensor.Tensor) *activations {
	shape := images.Shape()
	if len(shape) != 4 || shape[1] != 1 {
		panic(fmt.Sprintf("model: expected input [batch, 1, H, W], got %v", shape))
	}
	flat := flattenSize(shape[1:])
	if flat != p.FC1Weight.Shape()[1] {
		panic(fmt.Sprintf("model: input %v flattens to %d features, parameters expect %d",
			shape, flat, p.FC1Weight.Shape()[1]))
	}
	batch := shape[0]

	acts := &activations{input: images}

	acts.conv1Out = nn.Conv2D(images, p.Conv1Weight, p.Conv1Bias, 1, padding)
	acts.relu1Out = nn.ReLU(acts.conv1Out)
	acts.pool1Out = nn.AvgPool2D(acts.relu1Out, poolSize, poolSize)

	acts.conv2Out = nn.Conv2D(acts.pool1Out, p.Conv2Weight, p.Conv2Bias, 1, padding)
	acts.relu2Out = nn.ReLU(acts.conv2Out)
	acts.pool2Out = nn.AvgPool2D(acts.relu2Out, poolSize, poolSize)

	acts.flat = acts.pool2Out.Reshape(tensor.Shape{batch, flat})
	acts.fc1Out = nn.Dense(acts.flat, p.FC1Weight, p.FC1Bias)
	acts.fc1Act = nn.ReLU(acts.fc1Out)
	acts.fc2Out = nn.Dense(acts.fc1Act, p.FC2Weight, p.FC2Bias)

	acts.logProbs = nn.LogSoftmax(acts.fc2Out)

	return acts
}

// Forward runs the network on a batch of images and returns per-class
// log-probabilities of shape [batch, NumClasses].
func Forward(p Params, images *tensor.Tensor) *tensor.Tensor {
	return forward(p, images).logProbs
}

// LossGrad runs a full forward and backward pass. It returns the mean
// cross-entropy loss, the log-probabilities (for metric computation on the
// same forward pass), and the parameter gradients in Tensors order.
func LossGrad(p Params, images *tensor.Tensor, labels []int) (float64, *tensor.Tensor, []*tensor.Tensor) {
	acts := forward(p, images)
	loss := nn.CrossEntropy(acts.logProbs, labels)

	// Softmax cross-entropy collapses to a single gradient w.r.t. the logits.
	logitsGrad := nn.LogSoftmaxCrossEntropyBackward(acts.logProbs, labels)

	fc2WeightGrad := nn.DenseWeightBackward(acts.fc1Act, logitsGrad)
	fc2BiasGrad := nn.DenseBiasBackward(logitsGrad)
	fc1ActGrad := nn.DenseInputBackward(logitsGrad, p.FC2Weight)

	fc1OutGrad := nn.ReLUBackward(acts.fc1Out, fc1ActGrad)
	fc1WeightGrad := nn.DenseWeightBackward(acts.flat, fc1OutGrad)
	fc1BiasGrad := nn.DenseBiasBackward(fc1OutGrad)
	flatGrad := nn.DenseInputBackward(fc1OutGrad, p.FC1Weight)

	pool2Grad := flatGrad.Reshape(acts.pool2Out.Shape())
	relu2Grad := nn.AvgPool2DBackward(pool2Grad, acts.relu2Out.Shape(), poolSize, poolSize)
	conv2OutGrad := nn.ReLUBackward(acts.conv2Out, relu2Grad)

	conv2WeightGrad := nn.Conv2DKernelBackward(acts.pool1Out, p.Conv2Weight, conv2OutGrad, 1, padding)
	conv2BiasGrad := nn.Conv2DBiasBackward(conv2OutGrad)
	pool1Grad := nn.Conv2DInputBackward(acts.pool1Out, p.Conv2Weight, conv2OutGrad, 1, padding)

	relu1Grad := nn.AvgPool2DBackward(pool1Grad, acts.relu1Out.Shape(), poolSize, poolSize)
	conv1OutGrad := nn.ReLUBackward(acts.conv1Out, relu1Grad)

	conv1WeightGrad := nn.Conv2DKernelBackward(acts.input, p.Conv1Weight, conv1OutGrad, 1, padding)
	conv1BiasGrad := nn.Conv2DBiasBackward(conv1OutGrad)

	grads := []*tensor.Tensor{
		conv1WeightGrad, conv1BiasGrad,
		conv2WeightGrad, conv2BiasGrad,
		fc1WeightGrad, fc1BiasGrad,
		fc2WeightGrad, fc2BiasGrad,
	}

	return loss, acts.logProbs, grads
}
