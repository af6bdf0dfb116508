package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
	"video-calib/internal/history"
	"video-calib/internal/logging"
	"video-calib/internal/mediatypes"
	"video-calib/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Directory layout inside the calibration directory.
const (
	OriginalVideoDir = "original_video"
	ResultVideoDir   = "result_video"

	defaultCalibDir  = "calib_data"
	defaultResultDir = "Result"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Options are the raw settings from flags and environment.
type Options struct {
	CalibDir   string
	ResultDir  string
	Workers    int
	Board      calibration.Board
	HistoryDB  string
	StatusAddr string
	NoHistory  bool
}

// Config holds the resolved configuration of a command.
type Config struct {
	CalibDir         string
	OriginalVideoDir string
	ResultVideoDir   string
	ParamsPath       string
	ResultDir        string
	HistoryPath      string
	StatusAddr       string
	Workers          int
	Board            calibration.Board
}

// Load resolves opts for command, creates the directory layout and logs
// the configuration with the startup banner.
func Load(command string, opts Options) (*Config, error) {
	printBanner(command)
	logSystemInfo()

	if err := opts.Board.Validate(); err != nil {
		return nil, err
	}

	calibDir := opts.CalibDir
	if calibDir == "" {
		calibDir = filepath.Join(BaseDir(), defaultCalibDir)
	}
	resultDir := opts.ResultDir
	if resultDir == "" {
		resultDir = filepath.Join(BaseDir(), defaultResultDir)
	}

	var err error
	if calibDir, err = filepath.Abs(calibDir); err != nil {
		return nil, fmt.Errorf("failed to resolve calibration directory path: %w", err)
	}
	if resultDir, err = filepath.Abs(resultDir); err != nil {
		return nil, fmt.Errorf("failed to resolve result directory path: %w", err)
	}

	cfg := &Config{
		CalibDir:         calibDir,
		OriginalVideoDir: filepath.Join(calibDir, OriginalVideoDir),
		ResultVideoDir:   filepath.Join(calibDir, ResultVideoDir),
		ParamsPath:       filepath.Join(calibDir, calibration.DefaultFileName),
		ResultDir:        resultDir,
		StatusAddr:       opts.StatusAddr,
		Workers:          workers.Resolve(opts.Workers),
		Board:            opts.Board,
	}
	if !opts.NoHistory {
		cfg.HistoryPath = opts.HistoryDB
		if cfg.HistoryPath == "" {
			cfg.HistoryPath = filepath.Join(calibDir, history.DefaultFileName)
		}
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Command:             %s", command)
	logging.Info("  Calibration dir:     %s", cfg.CalibDir)
	logging.Info("  Parameter file:      %s", cfg.ParamsPath)
	logging.Info("  Result dir:          %s", cfg.ResultDir)
	logging.Info("  Board:               %s inner corners", cfg.Board)
	logging.Info("  Frame workers:       %d", cfg.Workers)
	logging.Info("  History database:    %s", orDisabled(cfg.HistoryPath))
	logging.Info("  Status server:       %s", orDisabled(cfg.StatusAddr))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for _, d := range []struct{ path, name string }{
		{cfg.CalibDir, "calibration"},
		{cfg.OriginalVideoDir, "original video"},
		{cfg.ResultVideoDir, "result video"},
		{cfg.ResultDir, "result"},
	} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
	}
	for _, dir := range []string{cfg.CalibDir, cfg.ResultVideoDir, cfg.ResultDir} {
		if err := testWriteAccess(dir); err != nil {
			return nil, fmt.Errorf("%s is not writable: %w", dir, err)
		}
	}
	logging.Info("  [OK] Directories ready")

	return cfg, nil
}

// CalibrationInput returns arg when given, otherwise the first video (by
// name) in the original video directory.
func (c *Config) CalibrationInput(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}

	videos, err := mediatypes.ListVideos(c.OriginalVideoDir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", c.OriginalVideoDir, err)
	}
	switch len(videos) {
	case 0:
		return "", fmt.Errorf("no video found in %s", c.OriginalVideoDir)
	case 1:
	default:
		logging.Warn("%d videos in %s, calibrating with %s", len(videos), c.OriginalVideoDir, filepath.Base(videos[0]))
	}
	return videos[0], nil
}

// CalibrationOutput is where the calibrate command writes the undistorted
// copy of its input.
func (c *Config) CalibrationOutput(input string) string {
	return filepath.Join(c.ResultVideoDir, mediatypes.OutputName(input))
}

// UndistortOutput is where the undistort command writes input.
func (c *Config) UndistortOutput(input string) string {
	return filepath.Join(c.ResultDir, mediatypes.OutputName(input))
}

// BaseDir is the directory holding the executable, or the working
// directory when it cannot be determined.
func BaseDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func orDisabled(s string) string {
	if s == "" {
		return "DISABLED"
	}
	return s
}

func printBanner(command string) {
	banner := `
------------------------------------------------------------
        _     _                          _ _ _
 __   _(_) __| | ___  ___     ___ __ _| (_) |__
 \ \ / / |/ _' |/ _ \/ _ \   / __/ _' | | | '_ \
  \ V /| | (_| |  __/ (_) | | (_| (_| | | | |_) |
   \_/ |_|\__,_|\___|\___/   \___\__,_|_|_|_.__/

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Command:    %s", command)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  OpenCV version:  %s (gocv %s)", gocv.OpenCVVersion(), gocv.Version())
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Info("  Created %s directory: %s", name, path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
