package startup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-calib/internal/calibration"
	"video-calib/internal/history"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("GetBuildInfo() = %+v", info)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, GoVersion)
	}
}

func TestLoadCreatesLayout(t *testing.T) {
	root := t.TempDir()
	opts := Options{
		CalibDir:  filepath.Join(root, "calib"),
		ResultDir: filepath.Join(root, "out"),
		Workers:   3,
		Board:     calibration.DefaultBoard,
	}

	cfg, err := Load("calibrate", opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, dir := range []string{cfg.CalibDir, cfg.OriginalVideoDir, cfg.ResultVideoDir, cfg.ResultDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
	if cfg.OriginalVideoDir != filepath.Join(root, "calib", OriginalVideoDir) {
		t.Errorf("OriginalVideoDir = %s", cfg.OriginalVideoDir)
	}
	if cfg.ParamsPath != filepath.Join(root, "calib", calibration.DefaultFileName) {
		t.Errorf("ParamsPath = %s", cfg.ParamsPath)
	}
	if cfg.HistoryPath != filepath.Join(root, "calib", history.DefaultFileName) {
		t.Errorf("HistoryPath = %s", cfg.HistoryPath)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
}

func TestLoadOptions(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name        string
		opts        Options
		wantErr     bool
		wantHistory string
	}{
		{
			name:        "explicit history path",
			opts:        Options{CalibDir: root, ResultDir: root, Board: calibration.DefaultBoard, HistoryDB: filepath.Join(root, "h.db")},
			wantHistory: filepath.Join(root, "h.db"),
		},
		{
			name: "history disabled",
			opts: Options{CalibDir: root, ResultDir: root, Board: calibration.DefaultBoard, NoHistory: true, HistoryDB: "ignored.db"},
		},
		{
			name:    "invalid board",
			opts:    Options{CalibDir: root, ResultDir: root, Board: calibration.Board{Cols: 1, Rows: 7}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("undistort", tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.HistoryPath != tt.wantHistory {
				t.Errorf("HistoryPath = %q, want %q", cfg.HistoryPath, tt.wantHistory)
			}
		})
	}
}

func TestLoadRejectsFileAsDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "calib")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load("calibrate", Options{CalibDir: file, ResultDir: root, Board: calibration.DefaultBoard})
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("Load() error = %v, want not a directory", err)
	}
}

func TestCalibrationInput(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load("calibrate", Options{CalibDir: root, ResultDir: root, Board: calibration.DefaultBoard})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cfg.CalibrationInput(""); err == nil {
		t.Error("CalibrationInput() with no videos error = nil")
	}

	if got, _ := cfg.CalibrationInput("explicit.mp4"); got != "explicit.mp4" {
		t.Errorf("CalibrationInput(arg) = %q", got)
	}

	for _, name := range []string{"b.mp4", "a.mp4", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(cfg.OriginalVideoDir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	got, err := cfg.CalibrationInput("")
	if err != nil {
		t.Fatalf("CalibrationInput() error = %v", err)
	}
	if want := filepath.Join(cfg.OriginalVideoDir, "a.mp4"); got != want {
		t.Errorf("CalibrationInput() = %q, want %q", got, want)
	}
}

func TestOutputPaths(t *testing.T) {
	cfg := &Config{ResultVideoDir: "/c/result_video", ResultDir: "/r"}
	if got := cfg.CalibrationOutput("/c/original_video/board.mov"); got != filepath.Join("/c/result_video", "board_undistorted.mp4") {
		t.Errorf("CalibrationOutput() = %q", got)
	}
	if got := cfg.UndistortOutput("clips/take1.mp4"); got != filepath.Join("/r", "take1_undistorted.mp4") {
		t.Errorf("UndistortOutput() = %q", got)
	}
}

func TestBaseDir(t *testing.T) {
	if dir := BaseDir(); dir == "" || !filepath.IsAbs(dir) {
		t.Errorf("BaseDir() = %q, want an absolute path", dir)
	}
}

func TestEnsureDirectory(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := ensureDirectory(nested, "nested"); err != nil {
		t.Fatalf("ensureDirectory() error = %v", err)
	}
	if err := ensureDirectory(nested, "nested"); err != nil {
		t.Errorf("ensureDirectory() on existing dir error = %v", err)
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Fatalf("testWriteAccess() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file left behind")
	}
	if err := testWriteAccess(filepath.Join(dir, "missing")); err == nil {
		t.Error("testWriteAccess(missing) error = nil")
	}
}
