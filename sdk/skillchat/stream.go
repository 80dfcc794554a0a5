package skillchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const readBufferSize = 4096

// Stream decodes events from a server-sent event body.
type Stream struct {
	body    io.ReadCloser
	dec     Decoder
	pending []Frame
	buf     []byte
	eof     bool
	// err is a read failure held back until the frames read with it are consumed.
	err error

	bytesRead atomic.Int64
	skipped   atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once

	logger *Logger
}

// NewStream wraps body. The stream owns body and closes it on Close.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		buf:    make([]byte, readBufferSize),
		logger: GetLogger(),
	}
}

// Next returns the next event. It returns io.EOF once the body ends. Frames
// that fail to decode are logged and skipped.
func (s *Stream) Next() (*Event, error) {
	for {
		if s.closed.Load() {
			return nil, ErrStreamClosed
		}

		if len(s.pending) > 0 {
			f := s.pending[0]
			s.pending = s.pending[1:]

			ev, err := ParseEvent(f.Data)
			if err != nil {
				s.skipped.Add(1)
				s.logger.Warn("skipping malformed frame", "error", err, "frame", preview(f.Data))
				continue
			}
			return ev, nil
		}

		if s.err != nil {
			return nil, s.err
		}
		if s.eof {
			return nil, io.EOF
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.bytesRead.Add(int64(n))
			s.pending = append(s.pending, s.dec.Feed(s.buf[:n])...)
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
			s.pending = append(s.pending, s.dec.Flush()...)
			continue
		}
		if err != nil {
			if s.closed.Load() {
				return nil, ErrStreamClosed
			}
			s.err = err
		}
	}
}

// BytesRead returns the number of body bytes consumed so far.
func (s *Stream) BytesRead() int64 {
	return s.bytesRead.Load()
}

// Skipped returns the number of frames dropped because they failed to decode.
func (s *Stream) Skipped() int {
	return int(s.skipped.Load())
}

// Close stops the stream and closes the body. It is safe to call from another
// goroutine to interrupt a blocked Next.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
	})
	return err
}

// Run reads s until it ends and applies each event to t, in arrival order.
//
// Cancelling ctx stops reading and detaches t; the content applied so far is
// kept and Run returns nil. A read failure appends an error entry to the
// conversation and is returned. Run returns ErrStaleConversation if the
// conversation view switched away while the stream was open.
func Run(ctx context.Context, s *Stream, t *Turn) error {
	defer s.Close()

	stop := context.AfterFunc(ctx, func() {
		t.Detach()
		s.Close()
	})
	defer stop()

	sl := s.logger.StartStream(s, t)

	for {
		ev, err := s.Next()
		if ctx.Err() != nil {
			sl.End(StreamAborted)
			return nil
		}
		if errors.Is(err, io.EOF) {
			sl.End(StreamEOF)
			return finishTurn(t)
		}
		if err != nil {
			sl.Fail(err)
			if ferr := t.Fail(err); ferr != nil {
				return ferr
			}
			return fmt.Errorf("read stream: %w", err)
		}

		effect, err := t.Apply(ev)
		if err != nil {
			if errors.Is(err, ErrStreamClosed) && ctx.Err() != nil {
				sl.End(StreamAborted)
				return nil
			}
			if errors.Is(err, ErrStaleConversation) {
				sl.End(StreamStale)
			} else {
				sl.End(StreamAborted)
			}
			return err
		}
		sl.Event(ev, effect)
		if effect == EffectTerminate {
			sl.End(StreamDone)
			return finishTurn(t)
		}
	}
}

func finishTurn(t *Turn) error {
	if err := t.Finish(); err != nil && !errors.Is(err, ErrStreamClosed) {
		return err
	}
	return nil
}
