package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
)

const (
	chessboardFlags = gocv.CalibCBAdaptiveThresh | gocv.CalibCBNormalizeImage | gocv.CalibCBFastCheck

	subPixIterations = 40
	subPixEpsilon    = 0.001
)

var (
	subPixWindow   = image.Pt(11, 11)
	subPixZeroZone = image.Pt(-1, -1)
)

// ChessboardDetector finds chessboard inner corners and refines them to
// sub-pixel accuracy. It is safe for concurrent use.
type ChessboardDetector struct{}

// Detect implements calibration.Detector. Not finding the board is reported
// as Found=false with a nil error.
func (ChessboardDetector) Detect(_ context.Context, frame *gocv.Mat, board calibration.Board) (calibration.Detection, error) {
	if frame == nil || frame.Empty() {
		return calibration.Detection{}, fmt.Errorf("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := toGray(*frame, &gray); err != nil {
		return calibration.Detection{}, err
	}

	corners := gocv.NewMat()
	defer corners.Close()

	patternSize := image.Pt(board.Cols, board.Rows)
	if !gocv.FindChessboardCorners(gray, patternSize, &corners, chessboardFlags) {
		return calibration.Detection{}, nil
	}

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, subPixIterations, subPixEpsilon)
	gocv.CornerSubPix(gray, &corners, subPixWindow, subPixZeroZone, criteria)

	n := corners.Rows() * corners.Cols()
	if n != board.Corners() {
		return calibration.Detection{}, fmt.Errorf("detector returned %d corners for a %s board", n, board)
	}

	points := make([]calibration.Point2, 0, n)
	for row := 0; row < corners.Rows(); row++ {
		for col := 0; col < corners.Cols(); col++ {
			v := corners.GetVecfAt(row, col)
			points = append(points, calibration.Point2{X: v[0], Y: v[1]})
		}
	}
	return calibration.Detection{Points: points, Found: true}, nil
}

func toGray(src gocv.Mat, dst *gocv.Mat) error {
	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 3:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		return fmt.Errorf("unsupported frame with %d channels", src.Channels())
	}
	return nil
}
