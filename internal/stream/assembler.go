package stream

import (
	"context"
	"errors"
	"io"
)

const defaultReadSize = 4096

// Assembler turns a raw server-sent-events body into a Reader of text deltas.
type Assembler struct {
	MaxPushBack     int
	MaxPendingBytes int
	ReadSize        int
	Buffer          int
}

func NewAssembler(maxPushBack, maxPendingBytes int) *Assembler {
	return &Assembler{
		MaxPushBack:     maxPushBack,
		MaxPendingBytes: maxPendingBytes,
		ReadSize:        defaultReadSize,
		Buffer:          16,
	}
}

// Consume reads body until the done sentinel, end of input or an error. The body is
// closed when the returned reader is closed, which also interrupts a blocked read.
// Both the sentinel and a clean EOF end the stream with a done event.
func (a *Assembler) Consume(ctx context.Context, body io.ReadCloser, format Format) *Reader {
	size := a.ReadSize
	if size <= 0 {
		size = defaultReadSize
	}
	dec := NewDecoder(format).WithLimits(a.MaxPushBack, a.MaxPendingBytes)

	r := Go(ctx, a.Buffer, func(ctx context.Context, w *Writer) error {
		// Unblock a Read stuck on the network when the caller goes away.
		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()

		buf := make([]byte, size)
		for {
			n, readErr := body.Read(buf)
			if n > 0 {
				texts, err := dec.Feed(buf[:n])
				for _, t := range texts {
					if werr := w.Delta(t); werr != nil {
						return werr
					}
				}
				if err != nil {
					return err
				}
				if dec.Done() {
					return nil
				}
			}
			if readErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if !errors.Is(readErr, io.EOF) {
					return readErr
				}
				texts, err := dec.Flush()
				for _, t := range texts {
					if werr := w.Delta(t); werr != nil {
						return werr
					}
				}
				return err
			}
		}
	})
	r.OnClose(func() { body.Close() })
	return r
}
