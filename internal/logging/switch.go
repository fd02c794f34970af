package logging

import (
	"io"
	"sync"
)

// Switch is an io.Writer whose destination can be replaced while loggers
// hold it. Used to move output into a TUI once the screen is up.
type Switch struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSwitch starts writing to w
func NewSwitch(w io.Writer) *Switch {
	return &Switch{w: w}
}

// Set replaces the destination. A nil writer discards.
func (s *Switch) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *Switch) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}
