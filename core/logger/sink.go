package logger

import (
	"errors"
	"io"
	"sync"
)

// sink writes log lines to every output from a single goroutine, so slow
// files never stall handlers. When the queue is full Write blocks rather
// than drop lines.
type sink struct {
	out     io.Writer
	lines   chan []byte
	syncReq chan chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newSink(outputs []io.Writer, queue int) *sink {
	var ws []io.Writer
	for _, w := range outputs {
		if w != nil {
			ws = append(ws, w)
		}
	}
	if queue <= 0 {
		queue = 256
	}
	s := &sink{
		out:     io.MultiWriter(ws...),
		lines:   make(chan []byte, queue),
		syncReq: make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			if _, err := s.out.Write(line); err != nil {
				s.fail(err)
			}
		case ack := <-s.syncReq:
			s.drain()
			close(ack)
		}
	}
}

// drain writes whatever is already queued.
func (s *sink) drain() {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			if _, err := s.out.Write(line); err != nil {
				s.fail(err)
			}
		default:
			return
		}
	}
}

// Write queues a copy of line.
func (s *sink) Write(line []byte) error {
	if err := s.Err(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	s.lines <- append([]byte(nil), line...)
	return nil
}

// Sync returns once every line queued before the call has been written.
func (s *sink) Sync() error {
	ack := make(chan struct{})
	select {
	case s.syncReq <- ack:
		<-ack
	case <-s.done:
	}
	return s.Err()
}

// Close writes the remaining lines and stops the goroutine.
func (s *sink) Close() error {
	s.closeOnce.Do(func() { close(s.lines) })
	<-s.done
	return s.Err()
}

// Err is the first write error seen.
func (s *sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

var errNoSink = errors.New("logger: sink not initialized")
