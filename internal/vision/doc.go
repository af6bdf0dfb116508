// Package vision implements frame I/O and the per-frame operations on top of
// OpenCV (gocv).
//
// Frames are *gocv.Mat. Every frame handed out by Capture.Next or returned by
// Undistorter.Undistort is a new Mat that must be freed with Release once it
// has been consumed.
package vision
