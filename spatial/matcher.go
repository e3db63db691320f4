// Package spatial associates query coordinates with labelled point sets
// through a static nearest-neighbour index.
package spatial

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// Point3D represents a 3D point
type Point3D struct {
	X, Y, Z float64
}

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points3D is a collection of Point3D that satisfies kdtree.Interface
type Points3D []Point3D

func (p Points3D) Index(i int) kdtree.Comparable        { return p[i] }
func (p Points3D) Len() int                             { return len(p) }
func (p Points3D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points3D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points3D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points3D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points3D
type pointPlane struct {
	Points3D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points3D[i].X < p.Points3D[j].X
	case 1:
		return p.Points3D[i].Y < p.Points3D[j].Y
	case 2:
		return p.Points3D[i].Z < p.Points3D[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points3D: p.Points3D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points3D[i], p.Points3D[j] = p.Points3D[j], p.Points3D[i]
}

// Matcher classifies query coordinates against a label point set. Membership
// is an exact-match test: a query is inside the labelled region only when its
// nearest label point is at distance zero. Coordinates and labels are drawn
// from the same sampling grid, so inside points coincide with label points
// exactly; a radius threshold would misclassify grid neighbours.
//
// The index is read-only after construction. An empty label set is legal and
// classifies every query as outside.
type Matcher struct {
	tree *kdtree.Tree
}

// NewMatcher builds a nearest-neighbour index over the label point set.
func NewMatcher(labelPoints [][3]float64) *Matcher {
	if len(labelPoints) == 0 {
		return &Matcher{}
	}

	points := make(Points3D, len(labelPoints))
	for i, p := range labelPoints {
		points[i] = Point3D{X: p[0], Y: p[1], Z: p[2]}
	}

	return &Matcher{tree: kdtree.New(points, true)}
}

// NewMatcherFromTensor builds a matcher from an (M, 3) label tensor.
func NewMatcherFromTensor(labels *tensor.Tensor) (*Matcher, error) {
	points, err := labels.Points()
	if err != nil {
		return nil, err
	}
	return NewMatcher(points), nil
}

// Contains reports whether the query point coincides with a label point.
func (m *Matcher) Contains(query [3]float64) bool {
	if m.tree == nil {
		return false
	}

	_, dist := m.tree.Nearest(Point3D{X: query[0], Y: query[1], Z: query[2]})
	return dist == 0
}

// Classify returns one membership flag per query point.
func (m *Matcher) Classify(queries [][3]float64) []bool {
	membership := make([]bool, len(queries))
	if m.tree == nil {
		return membership
	}

	for i, q := range queries {
		membership[i] = m.Contains(q)
	}
	return membership
}

// ClassifyTensor returns one membership flag per row of an (N, 3) tensor.
func (m *Matcher) ClassifyTensor(queries *tensor.Tensor) ([]bool, error) {
	points, err := queries.Points()
	if err != nil {
		return nil, err
	}
	return m.Classify(points), nil
}
