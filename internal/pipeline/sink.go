package pipeline

// SlotStatus describes what a sink did with one slot.
type SlotStatus int

const (
	// StatusAccepted means the result was kept by a collecting sink.
	StatusAccepted SlotStatus = iota
	// StatusSkipped means the result was dropped by a collecting sink.
	StatusSkipped
	// StatusWritten means the result was written to an output stream.
	StatusWritten
)

// String returns the status name.
func (s SlotStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusSkipped:
		return "skipped"
	case StatusWritten:
		return "written"
	default:
		return "unknown"
	}
}

// Sink consumes results strictly in stream order. The driver calls Accept
// once per slot and Close once when the run ends, successfully or not.
type Sink[R any] interface {
	Accept(result Result[R]) (SlotStatus, error)
	Close() error
}

// Collector keeps the results matching Keep, densely and in stream order.
// Rejected results do not reserve a position.
type Collector[R any] struct {
	Keep func(R) bool

	items   []R
	indices []int
}

// NewCollector creates a collecting sink.
func NewCollector[R any](keep func(R) bool) *Collector[R] {
	return &Collector[R]{Keep: keep}
}

// Accept implements Sink.
func (c *Collector[R]) Accept(result Result[R]) (SlotStatus, error) {
	if c.Keep != nil && !c.Keep(result.Value) {
		return StatusSkipped, nil
	}
	c.items = append(c.items, result.Value)
	c.indices = append(c.indices, result.Index)
	return StatusAccepted, nil
}

// Close implements Sink. It is a no-op.
func (c *Collector[R]) Close() error {
	return nil
}

// Items returns the kept results in stream order.
func (c *Collector[R]) Items() []R {
	return c.items
}

// Indices returns the stream index of each kept result.
func (c *Collector[R]) Indices() []int {
	return c.indices
}

// FrameWriter appends frames to an output stream.
type FrameWriter[R any] interface {
	Write(frame R) error
	Close() error
}

// Streamer writes every result to a FrameWriter, one call per slot.
type Streamer[R any] struct {
	w       FrameWriter[R]
	written int
	closed  bool
}

// NewStreamer creates a streaming sink over w.
func NewStreamer[R any](w FrameWriter[R]) *Streamer[R] {
	return &Streamer[R]{w: w}
}

// Accept implements Sink.
func (s *Streamer[R]) Accept(result Result[R]) (SlotStatus, error) {
	if err := s.w.Write(result.Value); err != nil {
		return StatusWritten, err
	}
	s.written++
	return StatusWritten, nil
}

// Close flushes and closes the writer. Further calls are no-ops.
func (s *Streamer[R]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}

// Written returns the number of frames written so far.
func (s *Streamer[R]) Written() int {
	return s.written
}
