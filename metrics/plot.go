package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveCurves renders one PNG line chart per named series under dir. Series
// that were never logged are reported, not silently skipped.
func SaveCurves(store *Store, dir string, names ...string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plots directory: %v", err)
	}

	for _, name := range names {
		values, err := store.Values(name)
		if err != nil {
			return err
		}
		if err := saveCurve(name, values, dir); err != nil {
			return err
		}
	}
	return nil
}

// SaveAllCurves renders every series in the store.
func SaveAllCurves(store *Store, dir string) error {
	return SaveCurves(store, dir, store.Names()...)
}

func saveCurve(name string, values []float64, dir string) error {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "step"
	p.Y.Label.Text = name

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build line for %q: %v", name, err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	path := filepath.Join(dir, name+".png")
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot for %q: %v", name, err)
	}
	return nil
}
