// Package training drives occupancy network training and evaluation. It
// owns the epoch loop, batch iteration, metric bookkeeping, checkpointing
// and the run directory layout. The network itself is an external
// collaborator reached through the Model interface.
package training

import (
	"fmt"
	"math"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/checkpoints"
	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// Model is the inference-side contract of the occupancy network. Forward
// maps a volume and a set of query coordinates to one occupancy probability
// per coordinate.
type Model interface {
	// Forward returns a (N,) tensor of occupancy probabilities in [0, 1],
	// one per row of coordinates.
	Forward(volume, coordinates *tensor.Tensor) (*tensor.Tensor, error)

	// Name identifies the model for run metadata and architecture printing.
	Name() string
}

// Trainable extends Model with the backward half of the training step. The
// trainer hands the loss gradient to the model explicitly; there is no
// implicit tape.
type Trainable interface {
	Model

	// Backward propagates the loss gradient with respect to the model output
	// back through the network, accumulating parameter gradients.
	Backward(grad *tensor.Tensor) error
}

// Optimizer updates model parameters from accumulated gradients.
type Optimizer interface {
	// ZeroGrad clears accumulated gradients before a new batch.
	ZeroGrad()

	// Step applies one parameter update.
	Step() error

	// Name identifies the optimizer for run metadata.
	Name() string
}

// Loss interface defines methods that all loss functions must implement
type Loss interface {
	// Forward computes the scalar loss for a prediction/label pair and
	// retains what Grad needs.
	Forward(predicted, target *tensor.Tensor) (float64, error)

	// Grad returns the gradient of the most recent Forward with respect to
	// the prediction, shaped like the prediction.
	Grad() *tensor.Tensor

	// Name identifies the loss for run metadata.
	Name() string
}

// DataParallel wraps a trainable model for multi-device execution. Every
// model passed to the trainer satisfies the same interface, so wrapped and
// unwrapped models take the identical code path.
type DataParallel struct {
	inner   Trainable
	devices []string
}

// NewDataParallel wraps model for execution across devices. With fewer than
// two devices the wrapper is a plain pass-through.
func NewDataParallel(model Trainable, devices []string) *DataParallel {
	return &DataParallel{inner: model, devices: devices}
}

func (dp *DataParallel) Name() string {
	return dp.inner.Name()
}

// Unwrap exposes the wrapped model, e.g. for weight extraction.
func (dp *DataParallel) Unwrap() Trainable {
	return dp.inner
}

func (dp *DataParallel) Forward(volume, coordinates *tensor.Tensor) (*tensor.Tensor, error) {
	return dp.inner.Forward(volume, coordinates)
}

func (dp *DataParallel) Backward(grad *tensor.Tensor) error {
	return dp.inner.Backward(grad)
}

// ExportWeights delegates to the wrapped model so a parallel-wrapped model
// checkpoints the same way a plain one does.
func (dp *DataParallel) ExportWeights() []checkpoints.WeightTensor {
	if exporter, ok := dp.inner.(WeightExporter); ok {
		return exporter.ExportWeights()
	}
	return nil
}

// BCELoss implements binary cross entropy over occupancy probabilities with
// mean reduction.
type BCELoss struct {
	grad *tensor.Tensor
}

// NewBCELoss creates a new binary cross entropy loss function
func NewBCELoss() *BCELoss {
	return &BCELoss{}
}

func (bce *BCELoss) Name() string {
	return "BCELoss"
}

// clampProb keeps probabilities away from 0 and 1 so the log and the
// gradient denominator stay finite.
func clampProb(p float64) float64 {
	const eps = 1e-7
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// Forward computes L = -(1/N) * sum(y*log(p) + (1-y)*log(1-p))
func (bce *BCELoss) Forward(predicted, target *tensor.Tensor) (float64, error) {
	if predicted.NumElems != target.NumElems {
		return 0, fmt.Errorf("predicted and target tensors must have the same number of elements, got %d and %d",
			predicted.NumElems, target.NumElems)
	}
	if predicted.NumElems == 0 {
		return 0, fmt.Errorf("cannot compute loss over an empty prediction")
	}

	n := float64(predicted.NumElems)
	grad, err := tensor.Zeros(predicted.Shape)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i, raw := range predicted.Data {
		p := clampProb(float64(raw))
		y := float64(target.Data[i])
		sum += y*math.Log(p) + (1-y)*math.Log(1-p)
		// dL/dp for mean-reduced BCE
		grad.Data[i] = float32((p - y) / (p * (1 - p) * n))
	}

	bce.grad = grad
	return -sum / n, nil
}

// Grad returns the gradient computed by the most recent Forward call, or
// nil if Forward has not run yet.
func (bce *BCELoss) Grad() *tensor.Tensor {
	return bce.grad
}
