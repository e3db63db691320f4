package training

import (
	"math/rand"
	"testing"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// indexedDataset tags every sample so iteration order is observable.
type indexedDataset struct {
	n int
}

func (ds *indexedDataset) Len() int { return ds.n }

func (ds *indexedDataset) Get(idx int) (*Batch, error) {
	labels, err := tensor.NewTensor([]int{1}, []float32{float32(idx)})
	if err != nil {
		return nil, err
	}
	return &Batch{Labels: labels}, nil
}

func drainOrder(t *testing.T, dl *DataLoader) []int {
	t.Helper()
	dl.Reset()
	var order []int
	for dl.HasNext() {
		batch, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		order = append(order, int(batch.Labels.Data[0]))
	}
	return order
}

func TestDataLoaderSequentialOrder(t *testing.T) {
	dl, err := NewDataLoader(&indexedDataset{n: 5}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dl.Len() != 5 {
		t.Fatalf("Len = %d, want 5", dl.Len())
	}

	order := drainOrder(t, dl)
	for i, got := range order {
		if got != i {
			t.Fatalf("unshuffled order = %v", order)
		}
	}

	if dl.HasNext() {
		t.Error("exhausted epoch should have no next sample")
	}
	if _, err := dl.Next(); err == nil {
		t.Error("Next past the end of an epoch should fail")
	}
}

func TestDataLoaderShuffleRequiresSource(t *testing.T) {
	if _, err := NewDataLoader(&indexedDataset{n: 3}, true, nil); err == nil {
		t.Fatal("shuffling without a random source should fail")
	}
}

func TestDataLoaderSeededShuffleIsReproducible(t *testing.T) {
	first, err := NewDataLoader(&indexedDataset{n: 16}, true, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewDataLoader(&indexedDataset{n: 16}, true, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}

	orderA := drainOrder(t, first)
	orderB := drainOrder(t, second)
	for i := range orderA {
		if orderA[i] != orderB[i] {
			t.Fatalf("same seed produced different orders:\n%v\n%v", orderA, orderB)
		}
	}

	// Every sample appears exactly once per epoch.
	seen := make(map[int]bool)
	for _, idx := range orderA {
		if seen[idx] {
			t.Fatalf("sample %d visited twice: %v", idx, orderA)
		}
		seen[idx] = true
	}
	if len(seen) != 16 {
		t.Fatalf("epoch visited %d distinct samples, want 16", len(seen))
	}
}

func TestDataLoaderResetRewinds(t *testing.T) {
	dl, err := NewDataLoader(&indexedDataset{n: 3}, false, nil)
	if err != nil {
		t.Fatal(err)
	}

	first := drainOrder(t, dl)
	second := drainOrder(t, dl)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("epoch lengths = %d, %d, want 3 each", len(first), len(second))
	}
}

func TestSimpleDatasetBounds(t *testing.T) {
	ds := NewSimpleDataset([]*Batch{{}})
	if _, err := ds.Get(-1); err == nil {
		t.Error("negative index should fail")
	}
	if _, err := ds.Get(1); err == nil {
		t.Error("out-of-range index should fail")
	}
	if _, err := ds.Get(0); err != nil {
		t.Errorf("valid index failed: %v", err)
	}
}
