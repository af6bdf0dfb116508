// Package mediatypes recognizes video files and names their outputs.
//
//	mediatypes.IsVideo("clip.MOV")            // true
//	mediatypes.ListVideos("calib/original_video")
//	mediatypes.OutputName("clips/a.mov")      // "a_undistorted.mp4"
package mediatypes
