package training

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/checkpoints"
	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/metrics"
)

// WeightExporter is implemented by models that can hand their parameters to
// the checkpoint saver. Models without it still get state-only checkpoints.
type WeightExporter interface {
	ExportWeights() []checkpoints.WeightTensor
}

// LearningRateProvider is implemented by optimizers that expose their
// current learning rate for checkpoint metadata.
type LearningRateProvider interface {
	LearningRate() float64
}

// TrainerConfig controls the training loop
type TrainerConfig struct {
	// Epochs is the number of passes over the training dataset.
	Epochs int

	// SaveBestModel saves a checkpoint whenever validation loss strictly
	// improves on the best seen so far.
	SaveBestModel bool

	// CheckpointEvery saves a periodic checkpoint every n epochs regardless
	// of improvement. Both the best and the periodic save may fire in the
	// same epoch.
	CheckpointEvery int

	// Device tags checkpoints with the compute device identifier.
	Device string

	// MetricsDB, when set, mirrors the final metric series into a SQLite
	// database at this path in addition to the per-metric JSON artifacts.
	MetricsDB string
}

// DefaultTrainerConfig returns the standard training settings
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:          100,
		SaveBestModel:   true,
		CheckpointEvery: 10,
		Device:          "cpu",
	}
}

// Trainer drives the occupancy network training loop: forward pass, loss,
// backward pass, optimizer step, per-epoch validation and checkpointing.
// All metric series grow in lock-step with the reserved epoch series, so
// per-epoch slices stay aligned.
type Trainer struct {
	model          Trainable
	optimizer      Optimizer
	loss           Loss
	trainingData   *DataLoader
	validationData *DataLoader
	evaluator      *Evaluator
	store          *metrics.Store
	saver          *checkpoints.CheckpointSaver
	run            *Run
	config         TrainerConfig
	out            io.Writer
}

// NewTrainer creates a trainer and records the run's hyperparameters. The
// hyperparameter record is written once, at construction.
func NewTrainer(model Trainable, optimizer Optimizer, loss Loss, trainingData, validationData *DataLoader,
	run *Run, config TrainerConfig) (*Trainer, error) {
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epoch count must be positive, got %d", config.Epochs)
	}
	if config.CheckpointEvery <= 0 {
		return nil, fmt.Errorf("checkpoint interval must be positive, got %d", config.CheckpointEvery)
	}

	if err := run.WriteHyperparameters(model, optimizer, loss); err != nil {
		return nil, err
	}

	return &Trainer{
		model:          model,
		optimizer:      optimizer,
		loss:           loss,
		trainingData:   trainingData,
		validationData: validationData,
		evaluator:      NewEvaluator(loss, DefaultEvaluatorConfig()),
		store:          metrics.NewStore(),
		saver:          checkpoints.NewCheckpointSaver(config.Device),
		run:            run,
		config:         config,
		out:            os.Stdout,
	}, nil
}

// SetOutput redirects the trainer's progress reporting
func (t *Trainer) SetOutput(w io.Writer) {
	t.out = w
	t.evaluator.SetOutput(w)
}

// Store exposes the metric series collected so far
func (t *Trainer) Store() *metrics.Store {
	return t.store
}

// Train runs the full training loop. Metrics are persisted once per epoch,
// so a crash loses at most one epoch of bookkeeping.
func (t *Trainer) Train() error {
	progress := NewProgressBar("Train", t.config.Epochs*t.trainingData.Len())
	progress.SetOutput(t.out)

	bestLoss := math.Inf(1)
	// Stale until the first validation completes.
	validation := ValidationResult{Loss: math.Inf(1)}

	step := 0
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		t.trainingData.Reset()
		for t.trainingData.HasNext() {
			batch, err := t.trainingData.Next()
			if err != nil {
				return err
			}

			t.optimizer.ZeroGrad()

			prediction, err := t.model.Forward(batch.Volume, batch.Coordinates)
			if err != nil {
				return fmt.Errorf("forward pass failed in epoch %d: %v", epoch, err)
			}
			loss, err := t.loss.Forward(prediction, batch.Labels)
			if err != nil {
				return fmt.Errorf("loss computation failed in epoch %d: %v", epoch, err)
			}
			if err := t.model.Backward(t.loss.Grad()); err != nil {
				return fmt.Errorf("backward pass failed in epoch %d: %v", epoch, err)
			}
			if err := t.optimizer.Step(); err != nil {
				return fmt.Errorf("optimizer step failed in epoch %d: %v", epoch, err)
			}

			step++
			progress.SetDescription(fmt.Sprintf("Epoch %d/%d", epoch+1, t.config.Epochs))
			progress.Update(step, map[string]float64{
				"best_val_loss": bestLoss,
				"val_loss":      validation.Loss,
				"val_iou":       validation.IoU,
				"val_bb_iou":    validation.BBoxIoU,
				"loss":          loss,
			})

			// Lock-step append keeps train_loss aligned with epoch.
			t.store.Append("train_loss", loss)
			t.store.Append(metrics.EpochSeries, float64(epoch))
		}

		var err error
		validation, err = t.evaluator.Validate(t.model, t.validationData)
		if err != nil {
			return fmt.Errorf("validation failed after epoch %d: %v", epoch, err)
		}
		t.store.Append("validation_loss", validation.Loss)
		t.store.Append("validation_iou", validation.IoU)
		t.store.Append("validation_bb_iou", validation.BBoxIoU)

		if t.config.SaveBestModel && bestLoss > validation.Loss {
			bestLoss = validation.Loss
			checkpoint := t.buildCheckpoint(epoch, step, bestLoss)
			if err := t.saver.SaveCheckpoint(checkpoint, t.saver.BestPath(t.run.ModelsDir)); err != nil {
				return err
			}
		}
		if epoch%t.config.CheckpointEvery == 0 {
			checkpoint := t.buildCheckpoint(epoch, step, bestLoss)
			if err := t.saver.SaveCheckpoint(checkpoint, t.saver.PeriodicPath(t.run.ModelsDir, epoch)); err != nil {
				return err
			}
		}

		if err := t.store.Persist(t.run.MetricsDir); err != nil {
			return err
		}
	}
	progress.Finish()

	if err := metrics.SaveCurves(t.store, t.run.PlotsDir,
		"train_loss", "validation_loss", "validation_iou", "validation_bb_iou"); err != nil {
		return err
	}
	if t.config.MetricsDB != "" {
		sink, err := metrics.NewSQLiteSink(t.config.MetricsDB, t.run.ID)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Write(t.store); err != nil {
			return err
		}
	}

	return nil
}

// Validate runs one validation pass with the trainer's evaluator
func (t *Trainer) Validate() (ValidationResult, error) {
	return t.evaluator.Validate(t.model, t.validationData)
}

func (t *Trainer) buildCheckpoint(epoch, step int, bestLoss float64) *checkpoints.Checkpoint {
	checkpoint := &checkpoints.Checkpoint{
		TrainingState: checkpoints.TrainingState{
			Epoch:              epoch,
			Step:               step,
			BestValidationLoss: bestLoss,
			TotalSteps:         step,
		},
	}
	if exporter, ok := t.model.(WeightExporter); ok {
		checkpoint.Weights = exporter.ExportWeights()
	}
	if lr, ok := t.optimizer.(LearningRateProvider); ok {
		checkpoint.TrainingState.LearningRate = lr.LearningRate()
	}
	return checkpoint
}
