package autotrack

import (
	"context"
)

// runFunc produces events until done. emit blocks until the consumer pulls
// the event and reports false once the run is cancelled; producers must
// release their native buffers and return promptly when it does.
type runFunc func(ctx context.Context, emit func(any) bool) error

// Stream is a lazy sequence of Progress and Result events produced in strict
// frame order. The consumer paces the producer: each event is computed only
// after the previous one was pulled. Not safe for concurrent consumers.
type Stream struct {
	events chan any
	cancel context.CancelFunc
	cur    any
	err    error
}

func newStream(ctx context.Context, run runFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{events: make(chan any), cancel: cancel}
	go func() {
		defer close(s.events)
		emit := func(ev any) bool {
			select {
			case s.events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		err := run(ctx, emit)
		// Cancellation is a normal stop, not a failure.
		if err != nil && ctx.Err() == nil {
			s.err = err
		}
	}()
	return s
}

// Next advances to the next event. It returns false when the run finished,
// failed, or was stopped; check Err afterwards.
func (s *Stream) Next() bool {
	ev, ok := <-s.events
	if !ok {
		s.cur = nil
		return false
	}
	s.cur = ev
	return true
}

// Event returns the current event: a Progress or a Result.
func (s *Stream) Event() any { return s.cur }

// Err returns the failure that ended the stream, or nil on normal
// completion, tracking-lost termination, or cancellation.
func (s *Stream) Err() error { return s.err }

// Stop cancels the run and waits for the producer to finish releasing its
// buffers. Safe to call at any point, including after exhaustion.
func (s *Stream) Stop() {
	s.cancel()
	for range s.events {
	}
}
