package providers

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/mireles/aibridge/pkg/request"
)

// ErrStreamClosed is returned by Recv after Close has been called.
var ErrStreamClosed = errors.New("providers: stream closed")

// Stream is a finite, non-restartable sequence of response text fragments.
// Fragments arrive strictly in production order. A stream that is closed
// before draining never produces a completed response; Collect on a fully
// drained stream returns the final response with usage and cost filled in.
type Stream struct {
	recv   func() (string, error)
	finish func(text string) (*request.Response, error)
	stop   func() error

	mu       sync.Mutex
	text     strings.Builder
	done     bool
	closed   bool
	response *request.Response
	err      error
}

// NewStream builds a Stream from provider callbacks. recv returns the next
// fragment or io.EOF at the end of the sequence; finish builds the final
// response from the accumulated text once recv reports io.EOF; stop releases
// the underlying transport and is called at most once.
func NewStream(recv func() (string, error), finish func(text string) (*request.Response, error), stop func() error) *Stream {
	return &Stream{recv: recv, finish: finish, stop: stop}
}

// Recv returns the next text fragment. It returns io.EOF once the sequence
// is exhausted and ErrStreamClosed after an early Close.
func (s *Stream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStreamClosed
	}
	if s.done {
		return "", io.EOF
	}

	fragment, err := s.recv()
	if err == io.EOF {
		s.done = true
		_ = s.release()
		s.response, s.err = s.finish(s.text.String())
		return "", io.EOF
	}
	if err != nil {
		s.done = true
		s.err = err
		_ = s.release()
		return "", err
	}

	s.text.WriteString(fragment)

	return fragment, nil
}

// Close stops the stream. A stream closed before its final fragment never
// yields a completed response. Close after normal exhaustion is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.closed {
		return nil
	}
	s.closed = true

	return s.release()
}

// release invokes stop exactly once. Callers must hold s.mu.
func (s *Stream) release() error {
	if s.stop == nil {
		return nil
	}
	stop := s.stop
	s.stop = nil

	return stop()
}

// Response returns the completed response after the stream has been fully
// drained. It fails for a stream that was closed early or is still open.
func (s *Stream) Response() (*request.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if !s.done {
		return nil, errors.New("providers: stream not exhausted")
	}
	if s.err != nil {
		return nil, s.err
	}

	return s.response, nil
}

// Collect drains the stream and returns the completed response.
func (s *Stream) Collect() (*request.Response, error) {
	for {
		_, err := s.Recv()
		if err == io.EOF {
			return s.Response()
		}
		if err != nil {
			return nil, err
		}
	}
}
