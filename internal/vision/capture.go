package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"video-calib/internal/logging"
)

// ErrOpenVideo is returned when a video file cannot be opened for reading.
var ErrOpenVideo = errors.New("cannot open video")

// Info is the stream metadata reported by the container.
type Info struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
}

// Capture reads frames from a video file. It implements pipeline.Source for
// *gocv.Mat; every returned frame is a new Mat owned by the caller.
type Capture struct {
	path   string
	vc     *gocv.VideoCapture
	info   Info
	step   int
	limit  int
	pulled int
}

// OpenCapture opens path for sequential reading, one frame per Next call.
func OpenCapture(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpenVideo, path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w %s", ErrOpenVideo, path)
	}

	c := &Capture{
		path: path,
		vc:   vc,
		step: 1,
		info: Info{
			Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:        vc.Get(gocv.VideoCaptureFPS),
			FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
		},
	}
	logging.Debug("Opened %s: %dx%d @ %.3f fps, %d frames", path, c.info.Width, c.info.Height, c.info.FPS, c.info.FrameCount)
	return c, nil
}

// Info returns the stream metadata.
func (c *Capture) Info() Info {
	return c.info
}

// Path returns the file the capture reads from.
func (c *Capture) Path() string {
	return c.path
}

// Sample makes Next advance step frames per call and return the last frame
// of each stride. A positive limit stops the stream after that many frames.
func (c *Capture) Sample(step, limit int) *Capture {
	if step < 1 {
		step = 1
	}
	c.step = step
	c.limit = limit
	return c
}

// Next reads the next frame. A failed or empty read ends the stream.
func (c *Capture) Next() (*gocv.Mat, bool) {
	if c.limit > 0 && c.pulled >= c.limit {
		return nil, false
	}

	frame := gocv.NewMat()
	for i := 0; i < c.step; i++ {
		if ok := c.vc.Read(&frame); !ok || frame.Empty() {
			_ = frame.Close()
			return nil, false
		}
	}

	c.pulled++
	return &frame, true
}

// Close releases the underlying capture.
func (c *Capture) Close() error {
	return c.vc.Close()
}

// Release frees a frame returned by Next or by a transform. It accepts nil.
func Release(frame *gocv.Mat) {
	if frame == nil {
		return
	}
	if err := frame.Close(); err != nil {
		logging.Debug("failed to release frame: %v", err)
	}
}
