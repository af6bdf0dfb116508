// Package watch undistorts videos as they arrive in a directory.
//
// New or growing files are tracked with fsnotify and handed over once they
// have not changed for a settle period, so a video that is still being
// copied is not opened half-written.
package watch
