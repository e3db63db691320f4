package metrics

import (
	"math"
	"testing"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

const tolerance = 1e-6

func pointsTensor(points [][3]float64) *tensor.Tensor {
	return tensor.FromPoints(points)
}

func predictionTensor(t *testing.T, scores []float32) *tensor.Tensor {
	t.Helper()
	pred, err := tensor.NewTensor([]int{len(scores)}, scores)
	if err != nil {
		t.Fatalf("failed to build prediction tensor: %v", err)
	}
	return pred
}

// TestPointIoUExactMatch tests the end-to-end coincidence scenario: the
// prediction mask matches the ground-truth mask exactly, so IoU, precision
// and recall are all 1.
func TestPointIoUExactMatch(t *testing.T) {
	label := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}})
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}})
	prediction := predictionTensor(t, []float32{0.9, 0.9, 0.1})

	iou, err := PointIoU(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("PointIoU failed: %v", err)
	}
	if math.Abs(iou-1.0) > tolerance {
		t.Errorf("PointIoU = %f, expected 1.0", iou)
	}

	precision, err := Precision(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("Precision failed: %v", err)
	}
	if math.Abs(precision-1.0) > tolerance {
		t.Errorf("Precision = %f, expected 1.0", precision)
	}

	recall, err := Recall(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if math.Abs(recall-1.0) > tolerance {
		t.Errorf("Recall = %f, expected 1.0", recall)
	}
}

// TestPointIoUPartialOverlap tests a hand-computed IoU value
func TestPointIoUPartialOverlap(t *testing.T) {
	label := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}})
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}})
	// Predicts the first label point and one false positive.
	prediction := predictionTensor(t, []float32{0.9, 0.1, 0.9})

	iou, err := PointIoU(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("PointIoU failed: %v", err)
	}

	// intersection = 1 ({0,0,0}), union = 3
	if math.Abs(iou-1.0/3.0) > tolerance {
		t.Errorf("PointIoU = %f, expected %f", iou, 1.0/3.0)
	}
}

// TestPointIoUEmptyLabelSet tests that an empty label set is well-defined
func TestPointIoUEmptyLabelSet(t *testing.T) {
	label := pointsTensor(nil)
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}})
	prediction := predictionTensor(t, []float32{0.9, 0.1})

	iou, err := PointIoU(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("PointIoU failed for empty label set: %v", err)
	}

	// intersection = 0, union = 1 -> near zero
	if iou > tolerance {
		t.Errorf("PointIoU = %f, expected near zero", iou)
	}
}

// TestThresholdMonotonicity tests that raising the threshold never grows the
// predicted-positive count
func TestThresholdMonotonicity(t *testing.T) {
	prediction := predictionTensor(t, []float32{0.1, 0.3, 0.5, 0.7, 0.9})

	previous := len(prediction.Data) + 1
	for _, threshold := range []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		count := 0
		for _, positive := range predictionMask(prediction, threshold) {
			if positive {
				count++
			}
		}
		if count > previous {
			t.Errorf("threshold %f: positive count %d exceeds count %d at lower threshold",
				threshold, count, previous)
		}
		previous = count
	}
}

// TestPrecisionRecallDisjoint tests near-zero precision and recall when the
// prediction misses the label region entirely
func TestPrecisionRecallDisjoint(t *testing.T) {
	label := pointsTensor([][3]float64{{0, 0, 0}})
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {5, 5, 5}})
	prediction := predictionTensor(t, []float32{0.1, 0.9})

	precision, err := Precision(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("Precision failed: %v", err)
	}
	if precision > tolerance {
		t.Errorf("Precision = %f, expected near zero", precision)
	}

	recall, err := Recall(prediction, coordinates, label, 0.5)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if recall > tolerance {
		t.Errorf("Recall = %f, expected near zero", recall)
	}
}

// TestMetricsRejectLengthMismatch tests the prediction/coordinate contract
func TestMetricsRejectLengthMismatch(t *testing.T) {
	label := pointsTensor([][3]float64{{0, 0, 0}})
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}})
	prediction := predictionTensor(t, []float32{0.9})

	if _, err := PointIoU(prediction, coordinates, label, 0.5); err == nil {
		t.Error("PointIoU: expected length-mismatch error, got nil")
	}
	if _, err := Precision(prediction, coordinates, label, 0.5); err == nil {
		t.Error("Precision: expected length-mismatch error, got nil")
	}
	if _, err := Recall(prediction, coordinates, label, 0.5); err == nil {
		t.Error("Recall: expected length-mismatch error, got nil")
	}
	if _, err := BBoxIoU(prediction, coordinates, label, 0.5, [3]float64{}); err == nil {
		t.Error("BBoxIoU: expected length-mismatch error, got nil")
	}
}

// TestBBoxIoUKnownOverlap tests the hand-computed 1/15 overlap scenario:
// ground truth spans (0,0,0)-(2,2,2), prediction spans (1,1,1)-(3,3,3).
func TestBBoxIoUKnownOverlap(t *testing.T) {
	gt := [][3]float64{{0, 0, 0}, {2, 2, 2}}
	pred := [][3]float64{{1, 1, 1}, {3, 3, 3}}

	label := pointsTensor(gt)
	coordinates := pointsTensor(append(append([][3]float64{}, gt...), pred...))
	prediction := predictionTensor(t, []float32{0.1, 0.1, 0.9, 0.9})

	result, err := BBoxIoU(prediction, coordinates, label, 0.5, [3]float64{0, 0, 0})
	if err != nil {
		t.Fatalf("BBoxIoU failed: %v", err)
	}

	if result.Status != BBoxOK {
		t.Fatalf("Status = %s, expected OK", result.Status)
	}

	// intersection box (1,1,1)-(2,2,2), volume 1; union = 8 + 8 - 1 = 15
	if math.Abs(result.IoU-1.0/15.0) > tolerance {
		t.Errorf("IoU = %f, expected %f", result.IoU, 1.0/15.0)
	}

	for axis := 0; axis < 3; axis++ {
		if math.Abs(result.PredictionShape[axis]-2.0) > tolerance {
			t.Errorf("PredictionShape[%d] = %f, expected 2.0", axis, result.PredictionShape[axis])
		}
		if math.Abs(result.CornerError[axis]-1.0) > tolerance {
			t.Errorf("CornerError[%d] = %f, expected 1.0", axis, result.CornerError[axis])
		}
	}
}

// TestBBoxIoUOffsetExpandsLabelBox tests that the offset grows only the label box
func TestBBoxIoUOffsetExpandsLabelBox(t *testing.T) {
	gt := [][3]float64{{0, 0, 0}, {2, 2, 2}}
	pred := [][3]float64{{1, 1, 1}, {3, 3, 3}}

	label := pointsTensor(gt)
	coordinates := pointsTensor(append(append([][3]float64{}, gt...), pred...))
	prediction := predictionTensor(t, []float32{0.1, 0.1, 0.9, 0.9})

	result, err := BBoxIoU(prediction, coordinates, label, 0.5, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("BBoxIoU failed: %v", err)
	}
	if result.Status != BBoxOK {
		t.Fatalf("Status = %s, expected OK", result.Status)
	}

	// Label box becomes (-1,-1,-1)-(3,3,3), volume 64; prediction box volume 8
	// is fully contained, so intersection = 8 and union = 64.
	if math.Abs(result.IoU-8.0/64.0) > tolerance {
		t.Errorf("IoU = %f, expected %f", result.IoU, 8.0/64.0)
	}
}

// TestBBoxIoUSentinels tests that the two degenerate cases are distinguished
func TestBBoxIoUSentinels(t *testing.T) {
	coordinates := pointsTensor([][3]float64{{0, 0, 0}, {1, 1, 1}})

	// Empty label set: no query coordinate can coincide with a label point.
	noLabel, err := BBoxIoU(predictionTensor(t, []float32{0.9, 0.9}), coordinates,
		pointsTensor(nil), 0.5, [3]float64{})
	if err != nil {
		t.Fatalf("BBoxIoU failed for empty label set: %v", err)
	}
	if noLabel.Status != BBoxNoLabel {
		t.Errorf("Status = %s, expected NoLabel", noLabel.Status)
	}
	if noLabel.Value() != 1 {
		t.Errorf("Value = %f, expected 1 for the no-label sentinel", noLabel.Value())
	}

	// Non-empty label set but nothing above the threshold.
	noPred, err := BBoxIoU(predictionTensor(t, []float32{0.1, 0.1}), coordinates,
		pointsTensor([][3]float64{{0, 0, 0}}), 0.5, [3]float64{})
	if err != nil {
		t.Fatalf("BBoxIoU failed for empty prediction: %v", err)
	}
	if noPred.Status != BBoxNoPrediction {
		t.Errorf("Status = %s, expected NoPrediction", noPred.Status)
	}
	if noPred.Value() != 0 {
		t.Errorf("Value = %f, expected 0 for the no-prediction sentinel", noPred.Value())
	}

	if noLabel.Status == noPred.Status {
		t.Error("no-label and no-prediction sentinels must never be confused")
	}

	// Both sentinels zero-fill the diagnostics; only the status separates them.
	if noLabel.PredictionShape != noPred.PredictionShape || noLabel.CornerError != noPred.CornerError {
		t.Error("sentinel diagnostics should both be zero-filled")
	}
}

// TestBBoxStatusString tests the status labels
func TestBBoxStatusString(t *testing.T) {
	tests := []struct {
		status   BBoxStatus
		expected string
	}{
		{BBoxOK, "OK"},
		{BBoxNoLabel, "NoLabel"},
		{BBoxNoPrediction, "NoPrediction"},
		{BBoxStatus(7), "Unknown(7)"},
	}

	for _, test := range tests {
		if got := test.status.String(); got != test.expected {
			t.Errorf("BBoxStatus(%d).String() = %s, expected %s", test.status, got, test.expected)
		}
	}
}
