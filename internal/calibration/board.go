package calibration

import (
	"fmt"
	"math"
)

// Board describes a chessboard by its inner corner counts.
type Board struct {
	Cols int `json:"cols" cbor:"cols"`
	Rows int `json:"rows" cbor:"rows"`
}

// DefaultBoard is the 10x7 inner-corner board used for calibration videos.
var DefaultBoard = Board{Cols: 10, Rows: 7}

// Corners returns the number of inner corners on the board.
func (b Board) Corners() int {
	return b.Cols * b.Rows
}

// Validate checks that both dimensions are usable for detection.
func (b Board) Validate() error {
	if b.Cols < 2 || b.Rows < 2 {
		return fmt.Errorf("board must have at least 2x2 inner corners, got %dx%d", b.Cols, b.Rows)
	}
	return nil
}

func (b Board) String() string {
	return fmt.Sprintf("%dx%d", b.Cols, b.Rows)
}

// ObjectPoints returns the board's corner positions in board units on the
// z=0 plane: (i, j, 0) for row i and column j, rows outermost.
func (b Board) ObjectPoints() []Point3 {
	pts := make([]Point3, 0, b.Corners())
	for i := 0; i < b.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			pts = append(pts, Point3{X: float32(i), Y: float32(j)})
		}
	}
	return pts
}

// SampleStep returns how many frames to advance between calibration samples:
// half the frame rate, so about two samples per second of video.
func SampleStep(fps float64) int {
	step := int(fps / 2)
	if step < 1 {
		return 1
	}
	return step
}

// PlannedSamples returns the number of samples a video of frameCount frames
// yields at the given step.
func PlannedSamples(frameCount, step int) int {
	if frameCount <= 0 || step < 1 {
		return 0
	}
	return frameCount / step
}

// NormalizeFrameRate snaps NTSC-style rates (29.97, 59.94) up to the
// nearest integer rate for the output container. Other rates pass through.
func NormalizeFrameRate(fps float64) float64 {
	switch {
	case fps > 29 && fps < 30:
		return 30
	case fps > 59 && fps < 60:
		return 60
	case math.IsNaN(fps) || fps <= 0:
		return 0
	default:
		return fps
	}
}
