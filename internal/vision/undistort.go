package vision

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
	"video-calib/internal/logging"
)

// Undistorter removes lens distortion from frames. The camera and
// distortion matrices are built once and only read afterwards, so a single
// Undistorter can serve every worker.
type Undistorter struct {
	cam  gocv.Mat
	dist gocv.Mat
}

// NewUndistorter builds the matrices for p. Coefficient lists whose length
// OpenCV does not accept (4, 5, 8, 12 or 14) are normalized to 5.
func NewUndistorter(p calibration.Parameters) (*Undistorter, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration parameters: %w", err)
	}

	cam := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	m := p.CameraMatrix()
	for i, v := range m {
		cam.SetDoubleAt(i/3, i%3, v)
	}

	coeffs := p.Dist
	if !supportedCoefficientCount(len(coeffs)) {
		normalized := p.Coefficients()
		logging.Warn("Distortion model with %d coefficients is not supported, using %d", len(coeffs), calibration.NumCoefficients)
		coeffs = normalized[:]
	}
	dist := gocv.NewMatWithSize(1, len(coeffs), gocv.MatTypeCV64F)
	for i, v := range coeffs {
		dist.SetDoubleAt(0, i, v)
	}

	return &Undistorter{cam: cam, dist: dist}, nil
}

func supportedCoefficientCount(n int) bool {
	switch n {
	case 4, 5, 8, 12, 14:
		return true
	}
	return false
}

// Undistort implements calibration.Undistorter. The input frame is left
// untouched and a new frame is returned.
func (u *Undistorter) Undistort(_ context.Context, frame *gocv.Mat) (*gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	dst := gocv.NewMat()
	gocv.Undistort(*frame, &dst, u.cam, u.dist, u.cam)
	if dst.Empty() {
		_ = dst.Close()
		return nil, fmt.Errorf("undistort produced an empty frame")
	}
	return &dst, nil
}

// Close frees the matrices.
func (u *Undistorter) Close() error {
	if err := u.cam.Close(); err != nil {
		return err
	}
	return u.dist.Close()
}
