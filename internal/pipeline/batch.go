package pipeline

// Source yields frames in stream order. It returns false once the stream is
// exhausted or a frame cannot be read; the two cases are not distinguished.
// Implementations are not safe for concurrent use.
type Source[F any] interface {
	Next() (F, bool)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc[F any] func() (F, bool)

// Next calls f.
func (f SourceFunc[F]) Next() (F, bool) {
	return f()
}

// Slot is one batch position: a frame and its 0-based index in the stream.
type Slot[F any] struct {
	Index int
	Frame F
}

// Batch is an ordered run of slots pulled from a Source. An empty batch
// signals end of stream.
type Batch[F any] []Slot[F]

// Scheduler groups sequential pulls from a Source into batches of at most
// capacity slots.
type Scheduler[F any] struct {
	src      Source[F]
	capacity int
	next     int
	done     bool
}

// NewScheduler creates a Scheduler. A capacity below 1 is treated as 1.
func NewScheduler[F any](src Source[F], capacity int) *Scheduler[F] {
	if capacity < 1 {
		capacity = 1
	}
	return &Scheduler[F]{src: src, capacity: capacity}
}

// Capacity returns the maximum batch size.
func (s *Scheduler[F]) Capacity() int {
	return s.capacity
}

// Pulled returns the number of frames accepted so far, which is also the
// index the next frame will receive.
func (s *Scheduler[F]) Pulled() int {
	return s.next
}

// Fill pulls up to Capacity frames and returns them as a batch. It stops
// early at end of stream and returns the partial batch, which may be empty.
// Once end of stream has been observed the source is not pulled again.
func (s *Scheduler[F]) Fill() Batch[F] {
	if s.done {
		return nil
	}

	batch := make(Batch[F], 0, s.capacity)
	for len(batch) < s.capacity {
		frame, ok := s.src.Next()
		if !ok {
			s.done = true
			break
		}
		batch = append(batch, Slot[F]{Index: s.next, Frame: frame})
		s.next++
	}
	return batch
}
