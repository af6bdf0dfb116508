// Package pipeline runs a per-frame transform over a sequential frame stream
// with bounded parallelism while keeping the output in stream order.
//
// A Driver loops through three phases until the source is exhausted:
//   - Scanning: the Scheduler pulls up to Workers frames into a Batch
//   - Processing: the Pool runs the Op over every slot of the batch
//   - Emitting: results are handed to the Sink in slot order
//
// An empty batch ends the run. Batches never overlap: the next batch is not
// pulled until every result of the current one has been emitted, so the Nth
// result accepted by the sink always belongs to the Nth frame of the source,
// whatever the worker count.
//
// Two sinks are provided. Collector keeps the results matching a predicate
// (chessboard detections that found the pattern). Streamer forwards every
// result to a FrameWriter (the undistorted output video).
//
// Progress is reported as an explicit State value after each slot is
// finalized by the sink, and metrics are recorded through an Observer set
// with SetObserver.
package pipeline
