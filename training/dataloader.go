package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// Dataset interface defines methods that all occupancy datasets must implement
type Dataset interface {
	// Len returns the total number of samples
	Len() int

	// Get returns a single sample: the input volume, the query coordinates,
	// the per-coordinate occupancy labels and the raw occupied point set
	// used by the geometric metrics.
	Get(idx int) (*Batch, error)
}

// Batch represents one training or evaluation sample
type Batch struct {
	// Volume is the input scan, shaped (1, D, H, W).
	Volume *tensor.Tensor

	// Coordinates are the query locations, shaped (N, 3).
	Coordinates *tensor.Tensor

	// Labels carry one occupancy value per coordinate, shaped (N,).
	Labels *tensor.Tensor

	// LabelPoints is the raw occupied point set, shaped (M, 3). The metric
	// engine matches predicted points against it.
	LabelPoints *tensor.Tensor
}

// DataLoader provides sample iteration with optional shuffling. The shuffle
// source is injected so runs are reproducible under a seeded generator.
type DataLoader struct {
	dataset  Dataset
	shuffle  bool
	rng      *rand.Rand
	indices  []int
	position int
	mutex    sync.Mutex
}

// NewDataLoader creates a new DataLoader. rng may be nil when shuffle is
// false; with shuffle enabled a source is required.
func NewDataLoader(dataset Dataset, shuffle bool, rng *rand.Rand) (*DataLoader, error) {
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset: dataset,
		shuffle: shuffle,
		rng:     rng,
		indices: indices,
	}, nil
}

// Len returns the number of samples in an epoch
func (dl *DataLoader) Len() int {
	return dl.dataset.Len()
}

// Reset rewinds the loader to the start of an epoch, reshuffling if enabled
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// HasNext reports whether the current epoch has samples remaining
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// Next returns the next sample of the current epoch
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	if dl.position >= len(dl.indices) {
		dl.mutex.Unlock()
		return nil, fmt.Errorf("epoch exhausted after %d samples", len(dl.indices))
	}
	idx := dl.indices[dl.position]
	dl.position++
	dl.mutex.Unlock()

	batch, err := dl.dataset.Get(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
	}
	return batch, nil
}

// SimpleDataset is an in-memory Dataset over pre-built batches
type SimpleDataset struct {
	samples []*Batch
}

// NewSimpleDataset creates a dataset backed by the given samples
func NewSimpleDataset(samples []*Batch) *SimpleDataset {
	return &SimpleDataset{samples: samples}
}

func (ds *SimpleDataset) Len() int {
	return len(ds.samples)
}

func (ds *SimpleDataset) Get(idx int) (*Batch, error) {
	if idx < 0 || idx >= len(ds.samples) {
		return nil, fmt.Errorf("sample index %d out of range [0, %d)", idx, len(ds.samples))
	}
	return ds.samples[idx], nil
}
