package vision

import (
	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
	"video-calib/internal/pipeline"
)

var (
	_ pipeline.Source[*gocv.Mat]         = (*Capture)(nil)
	_ pipeline.FrameWriter[*gocv.Mat]    = (*Writer)(nil)
	_ calibration.Detector[*gocv.Mat]    = ChessboardDetector{}
	_ calibration.Solver                 = Solver{}
	_ calibration.Undistorter[*gocv.Mat] = (*Undistorter)(nil)
)
