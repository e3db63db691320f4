// Package checkpoints persists occupancy network state to disk as JSON
// checkpoints. A checkpoint carries the model weights together with the
// training progress needed to resume, so a saved best model can be reloaded
// for evaluation without rerunning training.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint represents a complete model state including weights and training metadata
type Checkpoint struct {
	// Model weights
	Weights []WeightTensor `json:"weights"`

	// Training state
	TrainingState TrainingState `json:"training_state"`

	// Metadata
	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight", "bias", "gamma", "beta", etc.
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch              int     `json:"epoch"`
	Step               int     `json:"step"`
	LearningRate       float64 `json:"learning_rate"`
	BestValidationLoss float64 `json:"best_validation_loss"`
	TotalSteps         int     `json:"total_steps"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	Device      string    `json:"device"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// CheckpointSaver handles saving and loading model checkpoints
type CheckpointSaver struct {
	device string
}

// NewCheckpointSaver creates a new checkpoint saver. The device tag is
// recorded in the metadata and encoded into the checkpoint filenames so runs
// on different hardware never overwrite each other.
func NewCheckpointSaver(device string) *CheckpointSaver {
	return &CheckpointSaver{
		device: device,
	}
}

// BestPath returns the filename used for the best-so-far model in dir.
// Saving the best model always targets the same path, so only the latest
// improvement survives.
func (cs *CheckpointSaver) BestPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("occupancy_network_best_%s.json", cs.device))
}

// PeriodicPath returns the filename used for the periodic snapshot of epoch.
func (cs *CheckpointSaver) PeriodicPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("occupancy_network_%d_%s.json", epoch, cs.device))
}

// SaveCheckpoint saves a complete model checkpoint to path
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	// Ensure metadata is set
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "occupancy-network"
		checkpoint.Metadata.Version = "1.0.0"
	}
	if checkpoint.Metadata.Device == "" {
		checkpoint.Metadata.Device = cs.device
	}
	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ") // Pretty print JSON

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// LoadCheckpoint loads a model checkpoint from path
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}
