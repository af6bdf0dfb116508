package mediatypes

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// VideoExtensions maps lowercase file extensions to whether OpenCV's
// FFmpeg backend is expected to read them.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// IsVideo reports whether path has a video extension. Hidden files are not
// videos.
func IsVideo(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return VideoExtensions[strings.ToLower(filepath.Ext(base))]
}

// ListVideos returns the videos directly inside dir, sorted by name.
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var videos []string
	for _, e := range entries {
		if e.IsDir() || !IsVideo(e.Name()) {
			continue
		}
		videos = append(videos, filepath.Join(dir, e.Name()))
	}
	sort.Strings(videos)
	return videos, nil
}

// OutputName returns the undistorted file name for input:
// "<stem>_undistorted.mp4".
func OutputName(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_undistorted.mp4"
}
