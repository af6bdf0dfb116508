package calibration

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Point2 is an image-space corner position in pixels.
type Point2 struct {
	X float32 `cbor:"x"`
	Y float32 `cbor:"y"`
}

// Point3 is a board-space corner position.
type Point3 struct {
	X float32 `cbor:"x"`
	Y float32 `cbor:"y"`
	Z float32 `cbor:"z"`
}

// Detection is the outcome of a chessboard search on one frame. A frame
// without the pattern yields Found=false and no points; that is a normal
// result, not an error.
type Detection struct {
	Points []Point2
	Found  bool
}

// detectionSetVersion is bumped when DetectionSet changes incompatibly.
const detectionSetVersion = 1

// DetectionSet holds the corner sets of every sampled frame where the board
// was found, densely and in stream order.
type DetectionSet struct {
	Version int       `cbor:"version"`
	Source  string    `cbor:"source"`
	Board   Board     `cbor:"board"`
	Width   int       `cbor:"width"`
	Height  int       `cbor:"height"`
	Step    int       `cbor:"step"`
	Planned int       `cbor:"planned"`
	Created time.Time `cbor:"created"`

	// Samples[i] is the sample index Points[i] was detected on.
	Samples []int      `cbor:"samples"`
	Points  [][]Point2 `cbor:"points"`
}

// NewDetectionSet creates an empty set for frames of the given size.
func NewDetectionSet(board Board, width, height int) *DetectionSet {
	return &DetectionSet{
		Version: detectionSetVersion,
		Board:   board,
		Width:   width,
		Height:  height,
		Created: time.Now().UTC(),
	}
}

// Add appends the corners found on sample index.
func (s *DetectionSet) Add(index int, points []Point2) {
	s.Samples = append(s.Samples, index)
	s.Points = append(s.Points, points)
}

// Len returns the number of accepted detections.
func (s *DetectionSet) Len() int {
	return len(s.Points)
}

// ObjectPoints returns one copy of the board's object points per detection.
func (s *DetectionSet) ObjectPoints() [][]Point3 {
	grid := s.Board.ObjectPoints()
	out := make([][]Point3, len(s.Points))
	for i := range out {
		out[i] = append([]Point3(nil), grid...)
	}
	return out
}

func detectionEncMode() (cbor.EncMode, error) {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	return opts.EncMode()
}

// SaveDetections writes s to path as CBOR, replacing any existing file.
func SaveDetections(s *DetectionSet, path string) error {
	em, err := detectionEncMode()
	if err != nil {
		return fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	data, err := em.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode detection set: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write detection set: %w", err)
	}
	return nil
}

// LoadDetections reads a detection set written by SaveDetections.
func LoadDetections(path string) (*DetectionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read detection set: %w", err)
	}

	var s DetectionSet
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode detection set %s: %w", path, err)
	}
	if s.Version != detectionSetVersion {
		return nil, fmt.Errorf("detection set %s has version %d, expected %d", path, s.Version, detectionSetVersion)
	}
	if len(s.Samples) != len(s.Points) {
		return nil, fmt.Errorf("detection set %s is inconsistent: %d samples, %d point sets", path, len(s.Samples), len(s.Points))
	}
	return &s, nil
}
