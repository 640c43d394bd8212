// Command digitnet trains a small convolutional network on MNIST and prints
// per-epoch train and test metrics.
package main

import (
	"flag"
	"fmt"
	"log"

	"digitnet/internal/mnist"
	"digitnet/internal/nn"
	"digitnet/internal/optim"
	"digitnet/internal/report"
	"digitnet/internal/tensor"
	"digitnet/internal/train"
)

func main() {
	dataDir := flag.String("data", "data", "Directory containing the MNIST IDX files")
	download := flag.Bool("download", false, "Download missing dataset files before loading")
	synthetic := flag.Bool("synthetic", false, "Use random synthetic data (for runs without MNIST files)")
	limit := flag.Int("limit", 0, "Max samples per split (0 = all)")
	epochs := flag.Int("epochs", 10, "Number of training epochs")
	batchSize := flag.Int("batch", 32, "Batch size")
	lr := flag.Float64("lr", 0.1, "Learning rate")
	momentum := flag.Float64("momentum", 0.9, "Momentum coefficient")
	seed := flag.Int64("seed", 0, "Root random seed")
	curves := flag.String("curves", "", "Write a training-curve SVG to this path")
	flag.Parse()

	trainSplit, testSplit, err := loadData(*synthetic, *download, *dataDir, *seed)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	trainSplit = trainSplit.Limit(*limit)
	testSplit = testSplit.Limit(*limit)

	fmt.Printf("Training on %d samples, evaluating on %d (batch=%d, lr=%g, momentum=%g, seed=%d)\n",
		trainSplit.N, testSplit.N, *batchSize, *lr, *momentum, *seed)

	loop := train.Loop{Opt: optim.SGD{LR: *lr, Momentum: *momentum}}
	state := loop.Init(*seed, tensor.Shape{1, trainSplit.H, trainSplit.W})
	seeds := train.NewSeedStream(*seed)

	history := make([]train.EpochStats, 0, *epochs)
	for epoch := 1; epoch <= *epochs; epoch++ {
		var trainMetrics nn.Metrics
		state, trainMetrics = loop.Epoch(state, trainSplit, *batchSize, seeds.Next())
		testMetrics := train.EvalSplit(state.Params, testSplit, *batchSize)

		fmt.Printf("Epoch %2d/%d: Loss=%.4f, Train Acc=%.2f%%, Test Loss=%.4f, Test Acc=%.2f%%\n",
			epoch, *epochs,
			trainMetrics.Loss, trainMetrics.Accuracy*100,
			testMetrics.Loss, testMetrics.Accuracy*100)

		history = append(history, train.EpochStats{Epoch: epoch, Train: trainMetrics, Test: testMetrics})
	}

	if *curves != "" {
		if err := report.WriteCurves(*curves, history); err != nil {
			log.Fatalf("write curves: %v", err)
		}
		fmt.Printf("Wrote training curves to %s\n", *curves)
	}
}

func loadData(synthetic, download bool, dataDir string, seed int64) (trainSplit, testSplit *mnist.Split, err error) {
	if synthetic {
		// Distinct derived seeds keep the splits disjoint in content.
		return mnist.Synthetic(512, seed+1), mnist.Synthetic(128, seed+2), nil
	}

	if download {
		if err := mnist.Fetch(dataDir); err != nil {
			return nil, nil, err
		}
	}
	return mnist.Load(dataDir)
}
