package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
	"video-calib/internal/logging"
)

// Solver runs OpenCV's camera calibration.
type Solver struct {
	// Flags are passed through to calibrateCamera. Zero uses the default
	// 5-coefficient model.
	Flags gocv.CalibFlag
}

// Solve implements calibration.Solver. The frame size is width by height.
func (s Solver) Solve(ctx context.Context, object [][]calibration.Point3, imagePts [][]calibration.Point2, width, height int) (calibration.Parameters, error) {
	if len(object) != len(imagePts) {
		return calibration.Parameters{}, fmt.Errorf("got %d object point sets and %d image point sets", len(object), len(imagePts))
	}
	if len(object) == 0 {
		return calibration.Parameters{}, calibration.ErrNoDetections
	}
	if err := ctx.Err(); err != nil {
		return calibration.Parameters{}, err
	}

	objVec := gocv.NewPoints3fVectorFromPoints(toPoints3f(object))
	defer objVec.Close()
	imgVec := gocv.NewPoints2fVectorFromPoints(toPoints2f(imagePts))
	defer imgVec.Close()

	cam := gocv.NewMat()
	defer cam.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objVec, imgVec, image.Pt(width, height), &cam, &dist, &rvecs, &tvecs, s.Flags)
	logging.Info("Calibration reprojection error: %.4f px", rms)

	if cam.Rows() != 3 || cam.Cols() != 3 {
		return calibration.Parameters{}, fmt.Errorf("solver returned a %dx%d camera matrix", cam.Rows(), cam.Cols())
	}

	return calibration.Parameters{
		Fx:   cam.GetDoubleAt(0, 0),
		Fy:   cam.GetDoubleAt(1, 1),
		Px:   cam.GetDoubleAt(0, 2),
		Py:   cam.GetDoubleAt(1, 2),
		Dist: readVector(dist),
	}, nil
}

func toPoints3f(sets [][]calibration.Point3) [][]gocv.Point3f {
	out := make([][]gocv.Point3f, len(sets))
	for i, set := range sets {
		pts := make([]gocv.Point3f, len(set))
		for j, p := range set {
			pts[j] = gocv.Point3f{X: p.X, Y: p.Y, Z: p.Z}
		}
		out[i] = pts
	}
	return out
}

func toPoints2f(sets [][]calibration.Point2) [][]gocv.Point2f {
	out := make([][]gocv.Point2f, len(sets))
	for i, set := range sets {
		pts := make([]gocv.Point2f, len(set))
		for j, p := range set {
			pts[j] = gocv.Point2f{X: p.X, Y: p.Y}
		}
		out[i] = pts
	}
	return out
}

// readVector flattens a single-row or single-column CV_64F Mat.
func readVector(m gocv.Mat) []float64 {
	if m.Empty() {
		return []float64{}
	}
	out := make([]float64, 0, m.Total())
	if m.Rows() == 1 {
		for c := 0; c < m.Cols(); c++ {
			out = append(out, m.GetDoubleAt(0, c))
		}
		return out
	}
	for r := 0; r < m.Rows(); r++ {
		out = append(out, m.GetDoubleAt(r, 0))
	}
	return out
}
