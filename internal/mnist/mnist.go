// Package mnist loads the MNIST handwritten digit dataset from IDX files,
// optionally downloading and checksum-verifying them first.
package mnist

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"digitnet/internal/tensor"
)

// Split is one portion of the dataset with normalized pixels. Images are
// stored flat in sample-major order: sample b occupies
// Images[b*H*W : (b+1)*H*W], pixel values already scaled to [0, 1].
type Split struct {
	Images []float64
	Labels []int
	N      int
	H      int
	W      int
}

// Standard MNIST file names, stored gzipped.
const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// Load reads the train and test splits from dir, accepting either gzipped or
// already-decompressed IDX files.
func Load(dir string) (train, test *Split, err error) {
	train, err = LoadSplit(findIDX(dir, trainImagesFile), findIDX(dir, trainLabelsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load train split: %w", err)
	}
	test, err = LoadSplit(findIDX(dir, testImagesFile), findIDX(dir, testLabelsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load test split: %w", err)
	}
	return train, test, nil
}

// findIDX prefers the gzipped name and falls back to the decompressed one.
func findIDX(dir, gzName string) string {
	gzPath := filepath.Join(dir, gzName)
	if _, err := os.Stat(gzPath); err == nil {
		return gzPath
	}
	return gzPath[:len(gzPath)-len(".gz")]
}

// LoadSplit reads one image/label file pair into a Split, normalizing pixels
// to [0, 1]. The two files must describe the same number of samples.
func LoadSplit(imagesPath, labelsPath string) (*Split, error) {
	imagesReader, err := openIDX(imagesPath)
	if err != nil {
		return nil, err
	}
	defer imagesReader.Close()

	pixels, count, rows, cols, err := readImages(imagesReader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}

	labelsReader, err := openIDX(labelsPath)
	if err != nil {
		return nil, err
	}
	defer labelsReader.Close()

	rawLabels, err := readLabels(labelsReader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsPath, err)
	}

	if len(rawLabels) != count {
		return nil, fmt.Errorf("sample count mismatch: %d images, %d labels", count, len(rawLabels))
	}

	split := &Split{
		Images: make([]float64, len(pixels)),
		Labels: make([]int, count),
		N:      count,
		H:      rows,
		W:      cols,
	}
	for i, p := range pixels {
		split.Images[i] = float64(p) / 255.0
	}
	for i, l := range rawLabels {
		split.Labels[i] = int(l)
	}
	return split, nil
}

// Limit returns a view of the first n samples, or the split itself when n is
// zero or exceeds the sample count. The view shares backing storage.
func (s *Split) Limit(n int) *Split {
	if n <= 0 || n >= s.N {
		return s
	}
	return &Split{
		Images: s.Images[:n*s.H*s.W],
		Labels: s.Labels[:n],
		N:      n,
		H:      s.H,
		W:      s.W,
	}
}

// Gather assembles the samples at the given indices into a batch tensor of
// shape [len(indices), 1, H, W] plus the matching label slice.
func (s *Split) Gather(indices []int) (*tensor.Tensor, []int) {
	batch := len(indices)
	sampleSize := s.H * s.W

	images := tensor.New(tensor.Shape{batch, 1, s.H, s.W})
	imagesData := images.Data()
	labels := make([]int, batch)

	for b, idx := range indices {
		if idx < 0 || idx >= s.N {
			panic(fmt.Sprintf("mnist: sample index %d out of range [0, %d)", idx, s.N))
		}
		copy(imagesData[b*sampleSize:(b+1)*sampleSize], s.Images[idx*sampleSize:(idx+1)*sampleSize])
		labels[b] = s.Labels[idx]
	}

	return images, labels
}

// Synthetic builds a random dataset with MNIST dimensions, useful for smoke
// tests and runs without the real data on disk.
func Synthetic(n int, seed int64) *Split {
	rng := rand.New(rand.NewSource(seed))

	split := &Split{
		Images: make([]float64, n*28*28),
		Labels: make([]int, n),
		N:      n,
		H:      28,
		W:      28,
	}
	for i := range split.Images {
		split.Images[i] = rng.Float64()
	}
	for i := range split.Labels {
		split.Labels[i] = rng.Intn(10)
	}
	return split
}
