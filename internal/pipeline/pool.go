package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Op is the per-frame transform run by the pool. Returning an error aborts
// the whole run; an expected negative outcome (such as a pattern not found)
// must be encoded in R instead.
type Op[F, R any] func(ctx context.Context, frame F) (R, error)

// Result is the output of Op for one slot.
type Result[R any] struct {
	Index int
	Value R
}

// SlotError reports a fatal fault in the per-frame transform.
type SlotError struct {
	Index int
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// Pool runs an Op over every slot of a batch with bounded parallelism.
type Pool[F, R any] struct {
	workers int
	op      Op[F, R]
}

// NewPool creates a pool with the given number of workers (minimum 1).
func NewPool[F, R any](workers int, op Op[F, R]) *Pool[F, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[F, R]{workers: workers, op: op}
}

// Workers returns the pool size.
func (p *Pool[F, R]) Workers() int {
	return p.workers
}

// Run applies the op to every slot and returns results in slot order. It
// blocks until all slots have finished, even when one of them fails. When
// several slots fail, the error of the lowest slot position is returned.
func (p *Pool[F, R]) Run(ctx context.Context, batch Batch[F]) ([]Result[R], error) {
	results := make([]Result[R], len(batch))
	if len(batch) == 0 {
		return results, nil
	}

	// errs is indexed like results; each worker only touches the positions
	// it received from the channel, so neither slice needs a lock.
	errs := make([]error, len(batch))

	n := p.workers
	if n > len(batch) {
		n = len(batch)
	}

	positions := make(chan int, len(batch))
	for i := range batch {
		positions <- i
	}
	close(positions)

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range positions {
				slot := batch[i]
				value, err := p.invoke(ctx, slot.Frame)
				results[i] = Result[R]{Index: slot.Index, Value: value}
				if err != nil {
					errs[i] = &SlotError{Index: slot.Index, Err: err}
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (p *Pool[F, R]) invoke(ctx context.Context, frame F) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return p.op(ctx, frame)
}
