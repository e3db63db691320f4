// Package metrics computes the occupancy evaluation metrics and accumulates
// them in an append-only series store.
package metrics

import (
	"fmt"
	"math"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/spatial"
	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// epsilon guards the zero-division cases in the ratio metrics; empty masks
// yield a defined near-zero result instead of an error.
const epsilon = 1e-9

// DefaultThreshold partitions raw prediction scores into the positive class.
const DefaultThreshold = 0.5

// predictionMask thresholds a flattened prediction tensor. The positive class
// is prediction > threshold, applied identically by every metric in a call.
func predictionMask(prediction *tensor.Tensor, threshold float64) []bool {
	mask := make([]bool, len(prediction.Data))
	for i, score := range prediction.Data {
		mask[i] = float64(score) > threshold
	}
	return mask
}

// groundTruthMask classifies every query coordinate against the label point
// set. An empty label set yields an all-false mask.
func groundTruthMask(coordinates, label *tensor.Tensor) ([]bool, error) {
	matcher, err := spatial.NewMatcherFromTensor(label)
	if err != nil {
		return nil, fmt.Errorf("failed to index label points: %v", err)
	}

	mask, err := matcher.ClassifyTensor(coordinates)
	if err != nil {
		return nil, fmt.Errorf("failed to classify coordinates: %v", err)
	}
	return mask, nil
}

func checkLengths(prediction *tensor.Tensor, coordinates *tensor.Tensor) error {
	if prediction.NumElems != coordinates.Rows() {
		return fmt.Errorf("prediction length %d does not match %d query coordinates",
			prediction.NumElems, coordinates.Rows())
	}
	return nil
}

// PointIoU computes the intersection over union of the thresholded prediction
// mask against the exact-match ground-truth mask. Works on one batch.
func PointIoU(prediction, coordinates, label *tensor.Tensor, threshold float64) (float64, error) {
	if err := checkLengths(prediction, coordinates); err != nil {
		return 0, err
	}

	truth, err := groundTruthMask(coordinates, label)
	if err != nil {
		return 0, err
	}
	predicted := predictionMask(prediction, threshold)

	var intersection, union float64
	for i := range predicted {
		if predicted[i] && truth[i] {
			intersection++
		}
		if predicted[i] || truth[i] {
			union++
		}
	}

	return intersection / (union + epsilon), nil
}

// Precision computes tp / (tp + fp) over the thresholded prediction mask.
func Precision(prediction, coordinates, label *tensor.Tensor, threshold float64) (float64, error) {
	if err := checkLengths(prediction, coordinates); err != nil {
		return 0, err
	}

	truth, err := groundTruthMask(coordinates, label)
	if err != nil {
		return 0, err
	}
	predicted := predictionMask(prediction, threshold)

	var tp, fp float64
	for i := range predicted {
		if predicted[i] && truth[i] {
			tp++
		}
		if predicted[i] && !truth[i] {
			fp++
		}
	}

	return tp / (tp + fp + epsilon), nil
}

// Recall computes tp / (tp + fn) over the thresholded prediction mask.
func Recall(prediction, coordinates, label *tensor.Tensor, threshold float64) (float64, error) {
	if err := checkLengths(prediction, coordinates); err != nil {
		return 0, err
	}

	truth, err := groundTruthMask(coordinates, label)
	if err != nil {
		return 0, err
	}
	predicted := predictionMask(prediction, threshold)

	var tp, fn float64
	for i := range predicted {
		if predicted[i] && truth[i] {
			tp++
		}
		if !predicted[i] && truth[i] {
			fn++
		}
	}

	return tp / (tp + fn + epsilon), nil
}

// BBoxStatus distinguishes the degenerate bounding-box cases from a computed
// IoU value. Callers must branch on the status, not on zeroed outputs: both
// degenerate cases zero-fill the shape and error vectors.
type BBoxStatus int

const (
	// BBoxOK means both boxes existed and IoU was computed.
	BBoxOK BBoxStatus = iota
	// BBoxNoLabel means no query coordinate coincided with a label point.
	BBoxNoLabel
	// BBoxNoPrediction means no prediction exceeded the threshold.
	BBoxNoPrediction
)

func (s BBoxStatus) String() string {
	switch s {
	case BBoxOK:
		return "OK"
	case BBoxNoLabel:
		return "NoLabel"
	case BBoxNoPrediction:
		return "NoPrediction"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// BBoxResult is the outcome of a bounding-box IoU computation.
type BBoxResult struct {
	Status BBoxStatus
	IoU    float64
	// PredictionShape holds the edge lengths of the predicted box.
	PredictionShape [3]float64
	// CornerError holds the per-axis maximum absolute error between the
	// corresponding corners of the predicted and label boxes.
	CornerError [3]float64
}

// Value flattens the result into the scalar the metric series records: the
// IoU for a computed result, 1 for the no-label sentinel and 0 for the
// no-prediction sentinel.
func (r BBoxResult) Value() float64 {
	switch r.Status {
	case BBoxNoLabel:
		return 1
	case BBoxNoPrediction:
		return 0
	default:
		return r.IoU
	}
}

type boundingBox struct {
	min, max [3]float64
}

func boxOf(points [][3]float64) boundingBox {
	box := boundingBox{min: points[0], max: points[0]}
	for _, p := range points[1:] {
		for axis := 0; axis < 3; axis++ {
			box.min[axis] = math.Min(box.min[axis], p[axis])
			box.max[axis] = math.Max(box.max[axis], p[axis])
		}
	}
	return box
}

func (b boundingBox) volume() float64 {
	v := 1.0
	for axis := 0; axis < 3; axis++ {
		v *= math.Abs(b.max[axis] - b.min[axis])
	}
	return v
}

func (b boundingBox) edges() [3]float64 {
	var e [3]float64
	for axis := 0; axis < 3; axis++ {
		e[axis] = math.Abs(b.max[axis] - b.min[axis])
	}
	return e
}

// BBoxIoU computes the axis-aligned bounding-box IoU between the ground-truth
// subset of the query coordinates and the predicted-positive subset. The
// label box is expanded by the per-axis offset in both directions to
// compensate for coarse label resolution; the prediction box is not.
func BBoxIoU(prediction, coordinates, label *tensor.Tensor, threshold float64, offset [3]float64) (BBoxResult, error) {
	if err := checkLengths(prediction, coordinates); err != nil {
		return BBoxResult{}, err
	}

	truth, err := groundTruthMask(coordinates, label)
	if err != nil {
		return BBoxResult{}, err
	}
	predicted := predictionMask(prediction, threshold)

	points, err := coordinates.Points()
	if err != nil {
		return BBoxResult{}, err
	}

	var labelSubset, predictionSubset [][3]float64
	for i, p := range points {
		if truth[i] {
			labelSubset = append(labelSubset, p)
		}
		if predicted[i] {
			predictionSubset = append(predictionSubset, p)
		}
	}

	if len(labelSubset) == 0 {
		return BBoxResult{Status: BBoxNoLabel}, nil
	}
	if len(predictionSubset) == 0 {
		return BBoxResult{Status: BBoxNoPrediction}, nil
	}

	labelBox := boxOf(labelSubset)
	for axis := 0; axis < 3; axis++ {
		labelBox.min[axis] -= offset[axis]
		labelBox.max[axis] += offset[axis]
	}
	predictionBox := boxOf(predictionSubset)

	intersection := 1.0
	for axis := 0; axis < 3; axis++ {
		overlap := math.Min(predictionBox.max[axis], labelBox.max[axis]) -
			math.Max(predictionBox.min[axis], labelBox.min[axis])
		intersection *= math.Max(0, overlap)
	}

	iou := intersection / (predictionBox.volume() + labelBox.volume() - intersection + epsilon)

	var cornerError [3]float64
	for axis := 0; axis < 3; axis++ {
		cornerError[axis] = math.Max(
			math.Abs(predictionBox.max[axis]-labelBox.max[axis]),
			math.Abs(predictionBox.min[axis]-labelBox.min[axis]),
		)
	}

	return BBoxResult{
		Status:          BBoxOK,
		IoU:             iou,
		PredictionShape: predictionBox.edges(),
		CornerError:     cornerError,
	}, nil
}
