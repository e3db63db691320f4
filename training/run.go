package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Run owns the artifact directory layout of one training or evaluation run.
// Every run gets a fresh ID, so concurrent runs on the same base directory
// never collide.
type Run struct {
	ID         string
	ModelsDir  string
	PlotsDir   string
	MetricsDir string
}

// NewRun creates the artifact directories for a fresh run under baseDir.
func NewRun(baseDir string) (*Run, error) {
	id := uuid.NewString()

	run := &Run{
		ID:         id,
		ModelsDir:  filepath.Join(baseDir, "models_"+id),
		PlotsDir:   filepath.Join(baseDir, "plots_"+id),
		MetricsDir: filepath.Join(baseDir, "metrics_"+id),
	}

	for _, dir := range []string{run.ModelsDir, run.PlotsDir, run.MetricsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory %s: %v", dir, err)
		}
	}
	return run, nil
}

// hyperparameters is the on-disk record of what produced this run.
type hyperparameters struct {
	Model     string `json:"model"`
	Optimizer string `json:"optim"`
	Loss      string `json:"loss"`
}

// WriteHyperparameters records the model, optimizer and loss of this run as
// hyperparameter.json next to the saved models.
func (r *Run) WriteHyperparameters(model Model, optimizer Optimizer, loss Loss) error {
	hp := hyperparameters{
		Model:     model.Name(),
		Optimizer: optimizer.Name(),
		Loss:      loss.Name(),
	}

	file, err := os.Create(filepath.Join(r.ModelsDir, "hyperparameter.json"))
	if err != nil {
		return fmt.Errorf("failed to create hyperparameter file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(hp); err != nil {
		return fmt.Errorf("failed to encode hyperparameters: %v", err)
	}
	return nil
}
