package nn

import (
	"math"
	"math/rand"

	"digitnet/internal/tensor"
)

// LeCunNormal initializes a weight tensor with values drawn from
// N(0, 1/fan_in), LeCun variance scaling. The caller supplies the random
// source, so initialization is fully determined by the seed that created it
// and the order in which tensors are drawn.
func LeCunNormal(rng *rand.Rand, fanIn int, shape tensor.Shape) *tensor.Tensor {
	std := math.Sqrt(1.0 / float64(fanIn))

	t := tensor.New(shape)
	data := t.Data()
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}

	return t
}
