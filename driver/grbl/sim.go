package grbl

import (
	"bytes"
	"io"
	"sync"
)

// Simulator is an in-memory controller that acknowledges every
// instruction, for exercising the driver without hardware.
type Simulator struct {
	mu      sync.Mutex
	partial bytes.Buffer
	pending bytes.Buffer
	closed  bool
	cond    *sync.Cond

	// Lines records every complete instruction received.
	Lines []string
	// Resets counts soft resets.
	Resets int
}

func NewSimulator() *Simulator {
	s := &Simulator{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Simulator) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	for _, b := range data {
		if b == softReset {
			s.Resets++
			continue
		}
		if b != '\n' {
			s.partial.WriteByte(b)
			continue
		}
		s.Lines = append(s.Lines, s.partial.String())
		s.partial.Reset()
		s.pending.WriteString("ok\n")
	}
	s.cond.Broadcast()
	return len(data), nil
}

func (s *Simulator) Read(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending.Len() == 0 {
		if s.closed {
			return 0, io.EOF
		}
		s.cond.Wait()
	}
	return s.pending.Read(data)
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}
