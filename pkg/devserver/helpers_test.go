package devserver

import (
	"io"
	"strconv"
	"sync"
)

func itoa(n int) string { return strconv.Itoa(n) }

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
