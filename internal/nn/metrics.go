package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"digitnet/internal/tensor"
)

// Metrics holds the per-batch observables of a forward pass.
type Metrics struct {
	Loss     float64 // mean cross-entropy over the batch, non-negative
	Accuracy float64 // fraction of correct argmax predictions, in [0, 1]
}

// CrossEntropy computes the mean negative log-likelihood of the labels under
// the given log-probabilities:
//
//	loss = -(1/B) Σ_b Σ_c onehot(label_b)[c] * logProbs[b, c]
//	     = -(1/B) Σ_b logProbs[b, label_b]
//
// logProbs: [batch, classes]; labels: class indices in [0, classes).
// An out-of-range label is a contract violation and panics.
func CrossEntropy(logProbs *tensor.Tensor, labels []int) float64 {
	shape := logProbs.Shape()
	if len(shape) != 2 {
		panic("crossentropy: logProbs must be 2D [batch, classes]")
	}
	batch := shape[0]
	classes := shape[1]
	if len(labels) != batch {
		panic(fmt.Sprintf("crossentropy: %d labels for batch of %d", len(labels), batch))
	}

	logProbsData := logProbs.Data()
	total := 0.0
	for b, label := range labels {
		if label < 0 || label >= classes {
			panic(fmt.Sprintf("crossentropy: label %d out of range [0, %d)", label, classes))
		}
		total -= logProbsData[b*classes+label]
	}

	return total / float64(batch)
}

// Accuracy computes the fraction of samples whose argmax prediction matches
// the label. Ties resolve to the lowest index (floats.MaxIdx returns the
// first occurrence of the maximum).
func Accuracy(logProbs *tensor.Tensor, labels []int) float64 {
	shape := logProbs.Shape()
	batch := shape[0]
	classes := shape[1]

	logProbsData := logProbs.Data()
	correct := 0
	for b, label := range labels {
		row := logProbsData[b*classes : (b+1)*classes]
		if floats.MaxIdx(row) == label {
			correct++
		}
	}

	return float64(correct) / float64(batch)
}

// ComputeMetrics evaluates loss and accuracy for one batch of
// log-probabilities.
func ComputeMetrics(logProbs *tensor.Tensor, labels []int) Metrics {
	return Metrics{
		Loss:     CrossEntropy(logProbs, labels),
		Accuracy: Accuracy(logProbs, labels),
	}
}

// MeanMetrics averages per-batch metrics with equal weight per batch.
func MeanMetrics(batches []Metrics) Metrics {
	losses := make([]float64, len(batches))
	accuracies := make([]float64, len(batches))
	for i, m := range batches {
		losses[i] = m.Loss
		accuracies[i] = m.Accuracy
	}
	return Metrics{
		Loss:     stat.Mean(losses, nil),
		Accuracy: stat.Mean(accuracies, nil),
	}
}
