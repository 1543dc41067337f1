// Package stream turns provider output into an ordered, cancellable sequence of
// model.StreamEvent values.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"sitegen-backend/internal/model"
)

// Reader is a lazy sequence of events ending in exactly one done or error event.
// Recv returns io.EOF once the terminal event has been delivered.
type Reader struct {
	events   <-chan model.StreamEvent
	ctx      context.Context
	cancel   context.CancelFunc
	finished bool

	mu      sync.Mutex
	closers []func()
	closed  bool
}

// Writer is the producing side handed to a Go producer.
type Writer struct {
	ch  chan<- model.StreamEvent
	ctx context.Context
}

// ErrClosed is returned by Writer.Delta once the consumer has gone away.
var ErrClosed = errors.New("stream closed by consumer")

// Go runs produce in its own goroutine and returns the consuming Reader. When produce
// returns nil a done event is emitted; a non-nil error becomes the error event. If the
// consumer closed the reader first, nothing more is delivered.
func Go(ctx context.Context, buffer int, produce func(ctx context.Context, w *Writer) error) *Reader {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan model.StreamEvent, buffer)
	r := &Reader{events: ch, ctx: ctx, cancel: cancel}
	w := &Writer{ch: ch, ctx: ctx}

	go func() {
		defer close(ch)
		err := produce(ctx, w)
		if ctx.Err() != nil && (err == nil || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled)) {
			return
		}
		if err != nil {
			w.send(model.StreamEvent{Kind: model.EventError, Err: err})
			return
		}
		w.send(model.StreamEvent{Kind: model.EventDone})
	}()

	return r
}

// Delta forwards one text fragment. Empty fragments are dropped.
func (w *Writer) Delta(text string) error {
	if text == "" {
		return nil
	}
	if !w.send(model.StreamEvent{Kind: model.EventDelta, Text: text}) {
		return ErrClosed
	}
	return nil
}

func (w *Writer) send(ev model.StreamEvent) bool {
	if w.ctx.Err() != nil {
		return false
	}
	select {
	case <-w.ctx.Done():
		return false
	case w.ch <- ev:
		return true
	}
}

// Recv blocks for the next event.
func (r *Reader) Recv() (model.StreamEvent, error) {
	if r.finished {
		return model.StreamEvent{}, io.EOF
	}
	if err := r.ctx.Err(); err != nil {
		r.finished = true
		return model.StreamEvent{}, err
	}

	select {
	case <-r.ctx.Done():
		r.finished = true
		return model.StreamEvent{}, r.ctx.Err()
	case ev, ok := <-r.events:
		if !ok {
			r.finished = true
			if err := r.ctx.Err(); err != nil {
				return model.StreamEvent{}, err
			}
			return model.StreamEvent{}, io.EOF
		}
		if r.ctx.Err() != nil {
			r.finished = true
			return model.StreamEvent{}, r.ctx.Err()
		}
		if ev.Terminal() {
			r.finished = true
		}
		return ev, nil
	}
}

// OnClose registers fn to run when the reader is closed, e.g. closing a response body
// or cancelling an SDK request.
func (r *Reader) OnClose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		fn()
		return
	}
	r.closers = append(r.closers, fn)
}

// Close stops the producer and releases the underlying connection. It is safe to call
// more than once and after the stream finished.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	r.cancel()
	for _, fn := range closers {
		fn()
	}
	return nil
}

// Collect drains r and returns the concatenated deltas. It closes r.
func Collect(r *Reader) (string, error) {
	defer r.Close()
	var out []byte
	for {
		ev, err := r.Recv()
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		switch ev.Kind {
		case model.EventDelta:
			out = append(out, ev.Text...)
		case model.EventError:
			return string(out), ev.Err
		}
	}
}
