// Package train drives optimization: it owns the training state and runs
// train steps, eval steps, and whole epochs over a dataset split.
package train

import (
	"math/rand"

	"digitnet/internal/mnist"
	"digitnet/internal/model"
	"digitnet/internal/nn"
	"digitnet/internal/optim"
	"digitnet/internal/tensor"
)

// Batch is one materialized slice of a dataset: images [B, 1, H, W] and the
// matching labels. Batches carry no identity or ordering of their own.
type Batch struct {
	Images *tensor.Tensor
	Labels []int
}

// State is the complete training state. It has value semantics: every step
// returns a new State and never writes through the old one, so any State can
// be held, compared, or replayed.
type State struct {
	Step   int
	Params model.Params
	Opt    optim.State
}

// Loop couples the model to an optimizer configuration.
type Loop struct {
	Opt optim.SGD
}

// Init builds the step-zero state: seeded model parameters and zeroed
// optimizer state.
func (l Loop) Init(seed int64, sampleShape tensor.Shape) State {
	params := model.Init(seed, sampleShape)
	return State{
		Step:   0,
		Params: params,
		Opt:    l.Opt.Init(params.Tensors()),
	}
}

// Step performs one optimization step on a batch: forward, loss, backward,
// parameter update. The returned metrics are computed from the forward pass
// that produced the gradients, i.e. from the parameters before the update.
func (l Loop) Step(state State, batch Batch) (State, nn.Metrics) {
	loss, logProbs, grads := model.LossGrad(state.Params, batch.Images, batch.Labels)

	metrics := nn.Metrics{
		Loss:     loss,
		Accuracy: nn.Accuracy(logProbs, batch.Labels),
	}

	newOpt, newParams := l.Opt.Apply(grads, state.Opt, state.Params.Tensors())

	next := State{
		Step:   state.Step + 1,
		Params: model.ParamsFromTensors(newParams),
		Opt:    newOpt,
	}
	return next, metrics
}

// Eval computes metrics for one batch without touching any state.
func Eval(params model.Params, batch Batch) nn.Metrics {
	return nn.ComputeMetrics(model.Forward(params, batch.Images), batch.Labels)
}

// Epoch runs one training epoch: a permutation of the split derived from
// epochSeed, truncated to whole batches of batchSize (the remainder is
// dropped), trained strictly in permutation order. Reported metrics are the
// arithmetic mean of the per-batch metrics. A split smaller than one batch
// yields zero steps and zero metrics.
func (l Loop) Epoch(state State, split *mnist.Split, batchSize int, epochSeed int64) (State, nn.Metrics) {
	perm := rand.New(rand.NewSource(epochSeed)).Perm(split.N)
	numBatches := split.N / batchSize
	if numBatches == 0 {
		return state, nn.Metrics{}
	}

	perBatch := make([]nn.Metrics, 0, numBatches)
	for i := 0; i < numBatches; i++ {
		images, labels := split.Gather(perm[i*batchSize : (i+1)*batchSize])
		var m nn.Metrics
		state, m = l.Step(state, Batch{Images: images, Labels: labels})
		perBatch = append(perBatch, m)
	}

	return state, nn.MeanMetrics(perBatch)
}

// EvalSplit evaluates every sample of a split in sequential batches,
// including the final short batch, weighting each batch's metrics by its
// sample count.
func EvalSplit(params model.Params, split *mnist.Split, batchSize int) nn.Metrics {
	var lossSum, accSum float64

	for start := 0; start < split.N; start += batchSize {
		end := start + batchSize
		if end > split.N {
			end = split.N
		}
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}

		images, labels := split.Gather(indices)
		m := Eval(params, Batch{Images: images, Labels: labels})

		n := float64(end - start)
		lossSum += m.Loss * n
		accSum += m.Accuracy * n
	}

	total := float64(split.N)
	return nn.Metrics{Loss: lossSum / total, Accuracy: accSum / total}
}

// SeedStream deals out one fresh seed per epoch from a root seed. Seeds are
// never reused, so runs are reproducible from the root seed alone.
type SeedStream struct {
	rng *rand.Rand
}

// NewSeedStream creates a stream rooted at seed.
func NewSeedStream(seed int64) *SeedStream {
	return &SeedStream{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next seed in the stream.
func (s *SeedStream) Next() int64 {
	return s.rng.Int63()
}

// EpochStats is one row of the training history: epoch number (1-based) with
// the epoch's mean training metrics and the post-epoch test metrics.
type EpochStats struct {
	Epoch int
	Train nn.Metrics
	Test  nn.Metrics
}
