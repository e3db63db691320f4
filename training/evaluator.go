package training

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/metrics"
	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// EvaluatorConfig controls evaluation behavior
type EvaluatorConfig struct {
	// Threshold defines the positive class: prediction > Threshold.
	Threshold float64

	// BBoxOffset expands the label bounding box per axis in both directions
	// to compensate for the coarser label resolution.
	BBoxOffset [3]float64

	// VoxelSideLen is the edge length of one voxel in world units, used when
	// rendering point clouds.
	VoxelSideLen float64

	// LabelDownscale is the label-to-volume side-length ratio. Reported
	// volume memory is scaled by its cube so the figure reflects the implied
	// full-resolution volume rather than the downsampled one in memory.
	LabelDownscale int

	// RenderEvery renders a point cloud on every n-th test batch; 0 disables
	// rendering.
	RenderEvery int
}

// DefaultEvaluatorConfig returns the standard evaluation settings
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Threshold:      0.5,
		BBoxOffset:     [3]float64{10.0, 10.0, 10.0},
		VoxelSideLen:   1.0,
		LabelDownscale: 1,
		RenderEvery:    25,
	}
}

// Evaluator drives one pass over a held-out dataset, computing loss and
// geometric metrics per batch. It never touches gradients.
type Evaluator struct {
	loss   Loss
	config EvaluatorConfig
	out    io.Writer
}

// NewEvaluator creates an evaluator with the given loss function
func NewEvaluator(loss Loss, config EvaluatorConfig) *Evaluator {
	return &Evaluator{
		loss:   loss,
		config: config,
		out:    os.Stdout,
	}
}

// SetOutput redirects the evaluator's console reporting
func (e *Evaluator) SetOutput(w io.Writer) {
	e.out = w
}

// ValidationResult carries the mean metrics of one validation pass
type ValidationResult struct {
	Loss    float64
	IoU     float64
	BBoxIoU float64
}

// Validate iterates the dataset once and returns the mean loss, point IoU
// and bounding box IoU across the pass. A parallel-wrapped model takes the
// same path as a plain one; Forward is uniform across both.
func (e *Evaluator) Validate(model Model, loader *DataLoader) (ValidationResult, error) {
	store := metrics.NewStore()

	loader.Reset()
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return ValidationResult{}, err
		}

		prediction, err := model.Forward(batch.Volume, batch.Coordinates)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("validation forward pass failed: %v", err)
		}

		loss, err := e.loss.Forward(prediction, batch.Labels)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("validation loss failed: %v", err)
		}
		store.Append("loss", loss)

		iou, err := metrics.PointIoU(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold)
		if err != nil {
			return ValidationResult{}, err
		}
		store.Append("iou", iou)

		bbox, err := metrics.BBoxIoU(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold, e.config.BBoxOffset)
		if err != nil {
			return ValidationResult{}, err
		}
		store.Append("bb_iou", bbox.Value())
	}

	var result ValidationResult
	var err error
	if result.Loss, err = store.Average("loss"); err != nil {
		return ValidationResult{}, fmt.Errorf("validation pass produced no batches: %v", err)
	}
	if result.IoU, err = store.Average("iou"); err != nil {
		return ValidationResult{}, err
	}
	if result.BBoxIoU, err = store.Average("bb_iou"); err != nil {
		return ValidationResult{}, err
	}
	return result, nil
}

// TestSummary carries the averaged headline metrics of one test pass
type TestSummary struct {
	IoU            float64
	BBoxIoU        float64
	BBoxShape      [3]float64
	BBoxError      [3]float64
	Precision      float64
	Recall         float64
	Loss           float64
	SizeVolume     float64
	SizePrediction float64
	SizeActual     float64
}

// Test iterates the dataset once, logging every metric per batch into store,
// then persists the store under metricsDir and returns the averaged headline
// metrics. Point clouds are rendered into plotsDir on sampled batches.
func (e *Evaluator) Test(model Model, loader *DataLoader, store *metrics.Store, metricsDir, plotsDir string) (TestSummary, error) {
	progress := NewProgressBar("Test", loader.Len())
	progress.SetOutput(e.out)

	// Reported volume memory is scaled up to the implied full resolution.
	upsampleFactor := math.Pow(float64(e.config.LabelDownscale), 3)

	loader.Reset()
	for index := 0; loader.HasNext(); index++ {
		batch, err := loader.Next()
		if err != nil {
			return TestSummary{}, err
		}
		progress.Update(index+1, nil)

		prediction, err := model.Forward(batch.Volume, batch.Coordinates)
		if err != nil {
			return TestSummary{}, fmt.Errorf("test forward pass failed: %v", err)
		}

		if e.config.RenderEvery > 0 && index%e.config.RenderEvery == 0 {
			predicted, err := predictedPoints(prediction, batch.Coordinates, e.config.Threshold)
			if err != nil {
				return TestSummary{}, err
			}
			shape, err := spatialShape(batch.Volume)
			if err != nil {
				return TestSummary{}, err
			}
			if err := SavePointClouds(plotsDir, index, predicted, batch.LabelPoints, shape, e.config.VoxelSideLen); err != nil {
				return TestSummary{}, err
			}
		}

		iou, err := metrics.PointIoU(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold)
		if err != nil {
			return TestSummary{}, err
		}
		store.Append("iou", iou)

		bbox, err := metrics.BBoxIoU(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold, e.config.BBoxOffset)
		if err != nil {
			return TestSummary{}, err
		}
		store.Append("iou_bounding_box", bbox.Value())
		store.Append("bounding_box_shape_x", bbox.PredictionShape[0])
		store.Append("bounding_box_shape_y", bbox.PredictionShape[1])
		store.Append("bounding_box_shape_z", bbox.PredictionShape[2])
		store.Append("bounding_box_error_x", bbox.CornerError[0])
		store.Append("bounding_box_error_y", bbox.CornerError[1])
		store.Append("bounding_box_error_z", bbox.CornerError[2])

		precision, err := metrics.Precision(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold)
		if err != nil {
			return TestSummary{}, err
		}
		store.Append("precision", precision)

		recall, err := metrics.Recall(prediction, batch.Coordinates, batch.LabelPoints, e.config.Threshold)
		if err != nil {
			return TestSummary{}, err
		}
		store.Append("recall", recall)

		loss, err := e.loss.Forward(prediction, batch.Labels)
		if err != nil {
			return TestSummary{}, fmt.Errorf("test loss failed: %v", err)
		}
		store.Append("test_loss", loss)

		store.Append("size_volume", batch.Volume.SizeMB()*upsampleFactor)
		store.Append("size_prediction", prediction.SizeMB())
		store.Append("size_actual", batch.LabelPoints.SizeMB())
	}
	progress.Finish()

	if err := store.Persist(metricsDir); err != nil {
		return TestSummary{}, err
	}

	summary, err := e.summarize(store)
	if err != nil {
		return TestSummary{}, err
	}
	e.printSummary(summary)
	return summary, nil
}

func (e *Evaluator) summarize(store *metrics.Store) (TestSummary, error) {
	var summary TestSummary
	for _, entry := range []struct {
		name string
		dst  *float64
	}{
		{"iou", &summary.IoU},
		{"iou_bounding_box", &summary.BBoxIoU},
		{"bounding_box_shape_x", &summary.BBoxShape[0]},
		{"bounding_box_shape_y", &summary.BBoxShape[1]},
		{"bounding_box_shape_z", &summary.BBoxShape[2]},
		{"bounding_box_error_x", &summary.BBoxError[0]},
		{"bounding_box_error_y", &summary.BBoxError[1]},
		{"bounding_box_error_z", &summary.BBoxError[2]},
		{"precision", &summary.Precision},
		{"recall", &summary.Recall},
		{"test_loss", &summary.Loss},
		{"size_volume", &summary.SizeVolume},
		{"size_prediction", &summary.SizePrediction},
		{"size_actual", &summary.SizeActual},
	} {
		value, err := store.Average(entry.name)
		if err != nil {
			return TestSummary{}, fmt.Errorf("test pass produced no %s values: %v", entry.name, err)
		}
		*entry.dst = value
	}
	return summary, nil
}

func (e *Evaluator) printSummary(s TestSummary) {
	fmt.Fprintf(e.out, "Intersection over union = %v\n", s.IoU)
	fmt.Fprintf(e.out, "Intersection over union bounding box = %v\n", s.BBoxIoU)
	fmt.Fprintf(e.out, "Mean bounding box shape = %v, %v, %v\n", s.BBoxShape[0], s.BBoxShape[1], s.BBoxShape[2])
	fmt.Fprintf(e.out, "Mean bounding box error = %v, %v, %v\n", s.BBoxError[0], s.BBoxError[1], s.BBoxError[2])
	fmt.Fprintf(e.out, "Precision = %v\n", s.Precision)
	fmt.Fprintf(e.out, "Recall = %v\n", s.Recall)
	fmt.Fprintf(e.out, "Test loss = %v\n", s.Loss)
	fmt.Fprintf(e.out, "Average memory usage per sample: Original volume = %.2fMB, Label = %.2fMB, Prediction = %.2fMB\n",
		s.SizeVolume, s.SizeActual, s.SizePrediction)
}

// predictedPoints returns the coordinate rows classified positive, as a
// (K, 3) tensor.
func predictedPoints(prediction, coordinates *tensor.Tensor, threshold float64) (*tensor.Tensor, error) {
	rows := coordinates.Rows()
	if prediction.NumElems != rows {
		return nil, fmt.Errorf("prediction has %d scores for %d coordinates", prediction.NumElems, rows)
	}

	var points [][3]float64
	for i := 0; i < rows; i++ {
		if float64(prediction.Data[i]) > threshold {
			p, err := coordinates.Point(i)
			if err != nil {
				return nil, err
			}
			points = append(points, p)
		}
	}
	return tensor.FromPoints(points), nil
}

// spatialShape extracts the (D, H, W) extent from a volume tensor, ignoring
// leading batch and channel dimensions.
func spatialShape(volume *tensor.Tensor) ([3]int, error) {
	if len(volume.Shape) < 3 {
		return [3]int{}, fmt.Errorf("volume tensor must have at least 3 dimensions, got shape %v", volume.Shape)
	}
	dims := volume.Shape[len(volume.Shape)-3:]
	return [3]int{dims[0], dims[1], dims[2]}, nil
}
