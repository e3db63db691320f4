package tensor

import (
	"math"
	"testing"
)

// TestNewTensor tests tensor creation and shape validation
func TestNewTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tensor, err := NewTensor([]int{2, 3}, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	if tensor.NumElems != 6 {
		t.Errorf("Expected 6 elements, got %d", tensor.NumElems)
	}

	if len(tensor.Shape) != 2 || tensor.Shape[0] != 2 || tensor.Shape[1] != 3 {
		t.Errorf("Expected shape [2 3], got %v", tensor.Shape)
	}
}

// TestNewTensorShapeMismatch tests that mismatched data is rejected
func TestNewTensorShapeMismatch(t *testing.T) {
	_, err := NewTensor([]int{2, 3}, []float32{1, 2, 3})
	if err == nil {
		t.Error("Expected error for data/shape mismatch, got nil")
	}
}

// TestNewTensorInvalidShape tests shape validation
func TestNewTensorInvalidShape(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{"negative dimension", []int{-1, 3}, []float32{}},
		{"empty shape", []int{}, []float32{}},
	}

	for _, test := range tests {
		_, err := NewTensor(test.shape, test.data)
		if err == nil {
			t.Errorf("%s: expected error, got nil", test.name)
		}
	}
}

// TestEmptyPointSet tests that a (0, 3) tensor is legal
func TestEmptyPointSet(t *testing.T) {
	tensor, err := Zeros([]int{0, 3})
	if err != nil {
		t.Fatalf("Zeros failed for empty point set: %v", err)
	}

	if tensor.NumElems != 0 {
		t.Errorf("Expected 0 elements, got %d", tensor.NumElems)
	}

	points, err := tensor.Points()
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("Expected 0 points, got %d", len(points))
	}
}

// TestPointAccess tests row access on (N, 3) tensors
func TestPointAccess(t *testing.T) {
	tensor := FromPoints([][3]float64{{0, 0, 0}, {1, 2, 3}})

	p, err := tensor.Point(1)
	if err != nil {
		t.Fatalf("Point failed: %v", err)
	}
	if p != [3]float64{1, 2, 3} {
		t.Errorf("Expected point (1, 2, 3), got %v", p)
	}

	if _, err := tensor.Point(2); err == nil {
		t.Error("Expected error for out-of-range row, got nil")
	}

	flat, err := NewTensor([]int{4}, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	if _, err := flat.Point(0); err == nil {
		t.Error("Expected error for non (N, 3) tensor, got nil")
	}
}

// TestSizeMB tests memory accounting
func TestSizeMB(t *testing.T) {
	tensor, err := Zeros([]int{1000, 250})
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}

	// 250000 float32 elements = 1 MB
	if math.Abs(tensor.SizeMB()-1.0) > 1e-12 {
		t.Errorf("Expected 1.0 MB, got %f", tensor.SizeMB())
	}
}
