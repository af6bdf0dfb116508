// Package history keeps a SQLite record of calibration and undistortion
// runs: what was run on which video, how it ended and the parameters it
// produced. It also feeds the run gauges of the metrics collector.
package history
