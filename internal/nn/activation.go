package nn

import (
	"math"

	"digitnet/internal/tensor"
)

// ReLU applies the rectified linear unit f(x) = max(0, x) element-wise,
// returning a new tensor.
func ReLU(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(x.Shape())
	outData := out.Data()
	for i, v := range x.Data() {
		if v > 0 {
			outData[i] = v
		}
	}
	return out
}

// ReLUBackward passes the gradient through where the pre-activation input
// was positive and blocks it elsewhere.
func ReLUBackward(preAct, grad *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(grad.Shape())
	outData := out.Data()
	preData := preAct.Data()
	for i, g := range grad.Data() {
		if preData[i] > 0 {
			outData[i] = g
		}
	}
	return out
}

// LogSoftmax computes log(softmax(z)) over the last axis of a 2D tensor of
// logits, row by row, using the log-sum-exp trick:
//
//	LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z))))
//
// Subtracting max(z) before exponentiating prevents overflow for large
// logits and underflow when all logits are very negative.
func LogSoftmax(logits *tensor.Tensor) *tensor.Tensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("logsoftmax: logits must be 2D [batch, classes]")
	}
	batch := shape[0]
	classes := shape[1]

	out := tensor.New(shape)
	outData := out.Data()
	logitsData := logits.Data()

	for b := 0; b < batch; b++ {
		row := logitsData[b*classes : (b+1)*classes]
		outRow := outData[b*classes : (b+1)*classes]

		maxZ := row[0]
		for _, v := range row[1:] {
			if v > maxZ {
				maxZ = v
			}
		}

		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxZ)
		}
		logSumExp := maxZ + math.Log(sumExp)

		for i, v := range row {
			outRow[i] = v - logSumExp
		}
	}

	return out
}

// LogSoftmaxCrossEntropyBackward computes the gradient of the mean
// cross-entropy loss w.r.t. the logits feeding the log-softmax:
//
//	dL/dlogits[i] = (softmax(logits)[i] - onehot[i]) / batch
//
// softmax is recovered as exp(logProbs), so only the log-probabilities and
// labels are needed.
func LogSoftmaxCrossEntropyBackward(logProbs *tensor.Tensor, labels []int) *tensor.Tensor {
	shape := logProbs.Shape()
	batch := shape[0]
	classes := shape[1]
	if len(labels) != batch {
		panic("crossentropy backward: labels length must equal batch size")
	}

	grad := tensor.New(shape)
	gradData := grad.Data()
	logProbsData := logProbs.Data()

	invBatch := 1.0 / float64(batch)
	for b := 0; b < batch; b++ {
		row := logProbsData[b*classes : (b+1)*classes]
		gradRow := gradData[b*classes : (b+1)*classes]
		for i, lp := range row {
			gradRow[i] = math.Exp(lp) * invBatch
		}
		gradRow[labels[b]] -= invBatch
	}

	return grad
}
