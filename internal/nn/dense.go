package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"digitnet/internal/tensor"
)

// Dense performs the fully connected transformation y = x @ W.T + b.
//
//	x: [batch, in_features]
//	W: [out_features, in_features]
//	b: [out_features]
//	y: [batch, out_features]
//
// The matrix product is delegated to gonum, operating directly on the
// tensors' flat row-major storage.
func Dense(input, weight, bias *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	weightShape := weight.Shape()

	if len(inputShape) != 2 {
		panic(fmt.Sprintf("dense: input must be 2D [batch, features], got %v", inputShape))
	}
	if len(weightShape) != 2 {
		panic(fmt.Sprintf("dense: weight must be 2D [out, in], got %v", weightShape))
	}
	if inputShape[1] != weightShape[1] {
		panic(fmt.Sprintf("dense: input features %d != weight in-features %d", inputShape[1], weightShape[1]))
	}

	batch := inputShape[0]
	outFeatures := weightShape[0]

	output := tensor.New(tensor.Shape{batch, outFeatures})

	x := mat.NewDense(batch, inputShape[1], input.Data())
	w := mat.NewDense(outFeatures, weightShape[1], weight.Data())
	y := mat.NewDense(batch, outFeatures, output.Data())

	y.Mul(x, w.T())

	if bias != nil {
		biasData := bias.Data()
		outputData := output.Data()
		for b := 0; b < batch; b++ {
			row := outputData[b*outFeatures : (b+1)*outFeatures]
			for j, bv := range biasData {
				row[j] += bv
			}
		}
	}

	return output
}

// DenseInputBackward computes dL/dx = dL/dy @ W.
func DenseInputBackward(grad, weight *tensor.Tensor) *tensor.Tensor {
	batch := grad.Shape()[0]
	outFeatures := weight.Shape()[0]
	inFeatures := weight.Shape()[1]

	inputGrad := tensor.New(tensor.Shape{batch, inFeatures})

	g := mat.NewDense(batch, outFeatures, grad.Data())
	w := mat.NewDense(outFeatures, inFeatures, weight.Data())
	dx := mat.NewDense(batch, inFeatures, inputGrad.Data())

	dx.Mul(g, w)

	return inputGrad
}

// DenseWeightBackward computes dL/dW = (dL/dy).T @ x.
func DenseWeightBackward(input, grad *tensor.Tensor) *tensor.Tensor {
	batch := input.Shape()[0]
	inFeatures := input.Shape()[1]
	outFeatures := grad.Shape()[1]

	weightGrad := tensor.New(tensor.Shape{outFeatures, inFeatures})

	x := mat.NewDense(batch, inFeatures, input.Data())
	g := mat.NewDense(batch, outFeatures, grad.Data())
	dw := mat.NewDense(outFeatures, inFeatures, weightGrad.Data())

	dw.Mul(g.T(), x)

	return weightGrad
}

// DenseBiasBackward computes dL/db: the column sums of dL/dy.
func DenseBiasBackward(grad *tensor.Tensor) *tensor.Tensor {
	batch := grad.Shape()[0]
	outFeatures := grad.Shape()[1]

	biasGrad := tensor.New(tensor.Shape{outFeatures})
	biasGradData := biasGrad.Data()
	gradData := grad.Data()

	for b := 0; b < batch; b++ {
		row := gradData[b*outFeatures : (b+1)*outFeatures]
		for j, g := range row {
			biasGradData[j] += g
		}
	}

	return biasGrad
}
