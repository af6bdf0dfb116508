// Package startup resolves command configuration, prepares the directory
// layout and prints the startup and shutdown logs.
//
// # Directory Layout
//
// The calibration directory (--calib-dir, default calib_data next to the
// executable) holds:
//
//	original_video/          calibration input, first video by name
//	result_video/            <stem>_undistorted.mp4 from calibrate
//	camera_intrinsics.txt    calibration parameters
//	history.db               run history (unless --no-history)
//
// The undistort command writes <stem>_undistorted.mp4 files to the result
// directory (--result-dir, default Result next to the executable).
//
// Missing directories are created and write access is probed before any
// video is opened.
//
// # Build Information
//
// Version, Commit and BuildTime are set with -ldflags:
//
//	go build -ldflags "-X video-calib/internal/startup.Version=1.2.0"
package startup
