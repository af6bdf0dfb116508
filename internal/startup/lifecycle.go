package startup

import (
	"time"

	"video-calib/internal/logging"
)

// LogSection prints a section header.
func LogSection(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogHistoryInit logs the history database initialization
func LogHistoryInit(path string, duration time.Duration) {
	logging.Info("  [OK] History database %s opened in %v", path, duration.Round(time.Millisecond))
}

// LogStatusServer logs the status server endpoints.
func LogStatusServer(addr string) {
	logging.Info("  Status server:")
	logging.Info("    Progress:      http://%s/api/progress", addr)
	logging.Info("    Live:          ws://%s/ws/progress", addr)
	logging.Info("    Metrics:       http://%s/metrics", addr)
}

// LogRunComplete logs the end of a command.
func LogRunComplete(command string, duration time.Duration, err error) {
	LogSection("RUN COMPLETE")
	if err != nil {
		logging.Error("  %s failed after %v: %v", command, duration.Round(time.Millisecond), err)
		return
	}
	logging.Info("  [OK] %s finished in %v", command, duration.Round(time.Millisecond))
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	LogSection("SHUTDOWN INITIATED (received " + signal + ")")
	logging.Info("  Finishing the current batch...")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
