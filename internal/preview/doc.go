// Package preview renders a before/after snapshot of an undistorted frame
// as a JPEG file.
package preview
