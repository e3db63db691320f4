package tensor

import (
	"fmt"
)

// Tensor is a CPU-resident float32 tensor. The evaluation core only needs
// shape bookkeeping, flat data access and memory accounting; anything an
// accelerator would do happens behind the external model contract.
type Tensor struct {
	Shape    []int
	Data     []float32
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elements=%d)", t.Shape, t.NumElems)
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: must have at least one dimension")
	}
	for i, dim := range shape {
		if dim < 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be non-negative", i, dim)
		}
	}
	return nil
}

// NewTensor creates a tensor over the given data. The data slice is used
// directly, not copied.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, numElems)
	}

	return &Tensor{
		Shape:    shape,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a zero-filled tensor of the given shape.
func Zeros(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	return &Tensor{
		Shape:    shape,
		Data:     make([]float32, numElems),
		NumElems: numElems,
	}, nil
}

// FromPoints creates an (N, 3) tensor from a list of 3D points.
func FromPoints(points [][3]float64) *Tensor {
	data := make([]float32, len(points)*3)
	for i, p := range points {
		data[i*3+0] = float32(p[0])
		data[i*3+1] = float32(p[1])
		data[i*3+2] = float32(p[2])
	}
	return &Tensor{
		Shape:    []int{len(points), 3},
		Data:     data,
		NumElems: len(points) * 3,
	}
}

// Rows returns the number of leading-dimension rows.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Point returns row i of an (N, 3) tensor as a 3D point.
func (t *Tensor) Point(i int) ([3]float64, error) {
	if len(t.Shape) != 2 || t.Shape[1] != 3 {
		return [3]float64{}, fmt.Errorf("tensor shape %v is not (N, 3)", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return [3]float64{}, fmt.Errorf("row %d out of range [0, %d)", i, t.Shape[0])
	}

	return [3]float64{
		float64(t.Data[i*3+0]),
		float64(t.Data[i*3+1]),
		float64(t.Data[i*3+2]),
	}, nil
}

// Points converts an (N, 3) tensor to a point list.
func (t *Tensor) Points() ([][3]float64, error) {
	if len(t.Shape) != 2 || t.Shape[1] != 3 {
		return nil, fmt.Errorf("tensor shape %v is not (N, 3)", t.Shape)
	}

	points := make([][3]float64, t.Shape[0])
	for i := range points {
		points[i] = [3]float64{
			float64(t.Data[i*3+0]),
			float64(t.Data[i*3+1]),
			float64(t.Data[i*3+2]),
		}
	}
	return points, nil
}

// SizeMB reports the memory footprint of the tensor data in megabytes
// (4 bytes per element, decimal megabytes).
func (t *Tensor) SizeMB() float64 {
	return float64(t.NumElems) * 4 * 1e-6
}
