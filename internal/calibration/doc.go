// Package calibration turns chessboard video into camera intrinsics and
// applies them back to video.
//
// It covers:
//   - The camera_intrinsics.txt parameter file (Save, Load, Decode)
//   - Board geometry and frame sampling (Board, SampleStep, NormalizeFrameRate)
//   - Detection sets cached as CBOR so a solve can be repeated without
//     re-reading the video (SaveDetections, LoadDetections)
//   - The detect, calibrate and undistort flows built on the pipeline package
//
// Frame types are generic. Detection, solving and undistortion are reached
// through the Detector, Solver and Undistorter interfaces, implemented for
// OpenCV frames by the vision package.
package calibration
