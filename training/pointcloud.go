package training

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChristophReich1996/Binary-Segmentation-of-Large-Scale-3D-Volumes/tensor"
)

// Vertex colors of the rendered point clouds. Predictions are blue-ish,
// labels green, volume corners red, so the sets separate visually in any
// .obj viewer.
var (
	predictionColor = [3]float64{0.5, 0.5, 1.0}
	labelColor      = [3]float64{0.19, 0.8, 0.19}
	cornerColor     = [3]float64{1.0, 0.5, 0.5}
)

// Every n-th label point makes it into the rendering; the full label set is
// too dense to inspect.
const labelSubsample = 10

// SavePointClouds renders a prediction/label pair as two Wavefront .obj
// point clouds with per-vertex colors: prediction_<index>.obj holds the
// predicted positives, label_<index>.obj the subsampled ground truth. Both
// carry the eight volume-corner markers and are centered on the volume so
// the clouds sit around the origin in a viewer. volumeShape is the spatial
// extent (D, H, W) of the input volume in voxels and sideLen the edge
// length of one voxel.
func SavePointClouds(dir string, index int, prediction, labels *tensor.Tensor, volumeShape [3]int, sideLen float64) error {
	predPoints, err := prediction.Points()
	if err != nil {
		return fmt.Errorf("failed to read predicted points: %v", err)
	}
	labelPoints, err := labels.Points()
	if err != nil {
		return fmt.Errorf("failed to read label points: %v", err)
	}

	subsampled := make([][3]float64, 0, len(labelPoints)/labelSubsample+1)
	for i := 0; i < len(labelPoints); i += labelSubsample {
		subsampled = append(subsampled, labelPoints[i])
	}

	predPath := filepath.Join(dir, fmt.Sprintf("prediction_%d.obj", index))
	if err := writePointCloud(predPath, predPoints, predictionColor, volumeShape, sideLen); err != nil {
		return err
	}
	labelPath := filepath.Join(dir, fmt.Sprintf("label_%d.obj", index))
	return writePointCloud(labelPath, subsampled, labelColor, volumeShape, sideLen)
}

func writePointCloud(path string, points [][3]float64, color [3]float64, volumeShape [3]int, sideLen float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create point cloud directory: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create point cloud file: %v", err)
	}
	defer file.Close()

	var center [3]float64
	for axis := 0; axis < 3; axis++ {
		center[axis] = float64(volumeShape[axis]) * sideLen / 2
	}

	w := bufio.NewWriter(file)
	for _, p := range points {
		writeVertex(w, p, center, color)
	}
	for _, corner := range volumeCorners(volumeShape, sideLen) {
		writeVertex(w, corner, center, cornerColor)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write point cloud: %v", err)
	}
	return nil
}

func writeVertex(w *bufio.Writer, p, center, color [3]float64) {
	fmt.Fprintf(w, "v %f %f %f %f %f %f\n",
		p[0]-center[0], p[1]-center[1], p[2]-center[2],
		color[0], color[1], color[2])
}

// volumeCorners returns the eight corners of the volume in world units.
func volumeCorners(shape [3]int, sideLen float64) [][3]float64 {
	corners := make([][3]float64, 0, 8)
	for _, x := range []float64{0, float64(shape[0]) * sideLen} {
		for _, y := range []float64{0, float64(shape[1]) * sideLen} {
			for _, z := range []float64{0, float64(shape[2]) * sideLen} {
				corners = append(corners, [3]float64{x, y, z})
			}
		}
	}
	return corners
}
