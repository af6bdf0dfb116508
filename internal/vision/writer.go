package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultCodec is the FourCC used for output videos.
const DefaultCodec = "mp4v"

// Writer appends frames to a video file. It implements
// pipeline.FrameWriter for *gocv.Mat.
type Writer struct {
	path   string
	vw     *gocv.VideoWriter
	width  int
	height int
	frames int
}

// CreateWriter opens path for writing colour frames of the given size.
func CreateWriter(path string, fps float64, width, height int) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid output frame rate %v", fps)
	}

	vw, err := gocv.VideoWriterFile(path, DefaultCodec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create video writer %s: %w", path, err)
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		return nil, fmt.Errorf("video writer %s did not open (codec %s)", path, DefaultCodec)
	}

	return &Writer{path: path, vw: vw, width: width, height: height}, nil
}

// Write appends one frame. Frames must match the size the writer was
// created with.
func (w *Writer) Write(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("empty frame at position %d", w.frames)
	}
	if frame.Cols() != w.width || frame.Rows() != w.height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d", w.frames, frame.Cols(), frame.Rows(), w.width, w.height)
	}
	if err := w.vw.Write(*frame); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	return w.frames
}

// Path returns the output file.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	return w.vw.Close()
}
