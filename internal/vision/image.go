package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ToImage converts a BGR frame to an image.Image for encoding.
func ToImage(frame *gocv.Mat) (image.Image, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// FirstFrame returns the first frame of the video at path. The capture is
// closed before returning; the caller releases the frame.
func FirstFrame(path string) (*gocv.Mat, error) {
	c, err := OpenCapture(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	frame, ok := c.Next()
	if !ok {
		return nil, fmt.Errorf("%s has no readable frames", path)
	}
	return frame, nil
}
