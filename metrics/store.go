package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EpochSeries is the reserved series that co-indexes every other series by
// append order, enabling per-epoch slicing.
const EpochSeries = "epoch"

// Missing is the sentinel for a metric value that was not computed this
// step. Appending it is a no-op, so conditionally-logged metrics never fall
// out of alignment with the epoch series.
var Missing = math.NaN()

// Store is an append-only time series keyed by metric name. Series grow
// monotonically for the lifetime of the owning orchestrator and are flushed
// to disk at caller-chosen checkpoints; they are never pruned or reset within
// a run. A single goroutine owns the store.
type Store struct {
	series map[string][]float64
}

// NewStore creates an empty metric store.
func NewStore() *Store {
	return &Store{series: make(map[string][]float64)}
}

// Append records a value under the named series, creating the series if
// absent. The Missing sentinel (NaN) is skipped, never appended.
func (s *Store) Append(name string, value float64) {
	if math.IsNaN(value) {
		return
	}
	s.series[name] = append(s.series[name], value)
}

// Len returns the length of the named series, zero if absent.
func (s *Store) Len(name string) int {
	return len(s.series[name])
}

// Values returns a copy of the named series.
func (s *Store) Values(name string) ([]float64, error) {
	values, ok := s.series[name]
	if !ok {
		return nil, fmt.Errorf("metric %q was never logged", name)
	}

	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}

// Names returns the logged metric names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Average returns the arithmetic mean over the entire named series. A series
// that is absent or empty signals "no data" with a descriptive error.
func (s *Store) Average(name string) (float64, error) {
	values, ok := s.series[name]
	if !ok {
		return 0, fmt.Errorf("metric %q was never logged", name)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("metric %q has no values", name)
	}

	return stat.Mean(values, nil), nil
}

// AverageForEpoch returns the mean of the named series restricted to the
// positions whose aligned epoch entries equal epoch. The named series and the
// epoch series must have equal length; a mismatch is a caller error, not
// silently tolerated.
func (s *Store) AverageForEpoch(name string, epoch int) (float64, error) {
	values, ok := s.series[name]
	if !ok {
		return 0, fmt.Errorf("metric %q was never logged", name)
	}
	epochs, ok := s.series[EpochSeries]
	if !ok {
		return 0, fmt.Errorf("epoch series was never logged")
	}
	if len(values) != len(epochs) {
		return 0, fmt.Errorf("metric %q has %d values but %d epoch entries; series are misaligned",
			name, len(values), len(epochs))
	}

	var subset []float64
	for i, e := range epochs {
		if int(e) == epoch {
			subset = append(subset, values[i])
		}
	}
	if len(subset) == 0 {
		return 0, fmt.Errorf("metric %q has no values for epoch %d", name, epoch)
	}

	return stat.Mean(subset, nil), nil
}

// Persist writes every named series to dir, one JSON artifact per metric
// name. Existing artifacts of the same name are overwritten; a crash
// mid-write is superseded by the next persist.
func (s *Store) Persist(dir string) error {
	return s.persist(dir, "")
}

// PersistTimestamped writes every named series to dir with a
// timestamp-qualified filename, keeping earlier artifacts.
func (s *Store) PersistTimestamped(dir string) error {
	return s.persist(dir, "_"+time.Now().Format("15-04-05"))
}

func (s *Store) persist(dir, suffix string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %v", err)
	}

	for name, values := range s.series {
		path := filepath.Join(dir, name+suffix+".json")
		if err := writeSeries(path, values); err != nil {
			return fmt.Errorf("failed to persist metric %q: %v", name, err)
		}
	}
	return nil
}

func writeSeries(path string, values []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create series file: %v", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(values); err != nil {
		return fmt.Errorf("failed to encode series: %v", err)
	}
	return nil
}

// LoadSeries reads a persisted series artifact back from disk.
func LoadSeries(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open series file: %v", err)
	}
	defer file.Close()

	var values []float64
	if err := json.NewDecoder(file).Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to decode series: %v", err)
	}
	return values, nil
}
