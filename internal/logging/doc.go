// Package logging provides a simple leveled logging interface for
// video-calib.
//
// It supports the following log levels:
//   - DEBUG: Per-batch and per-frame detail
//   - INFO: Run configuration, summaries and milestones
//   - WARN: Recoverable problems (missing calibration keys, skipped files)
//   - ERROR: Failed runs
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL (or DEBUG) environment
// variable and can be overridden at runtime with SetLevel, which the
// --log-level flag uses.
package logging
