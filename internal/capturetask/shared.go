package capturetask

import (
	"sync"

	"github.com/streamcore/capture-core/internal/types"
)

// SharedDisplay is the capture task's "display_wp" weak slot (spec.md
// §5): the capture task is the single writer, the encode task (and
// anyone else) acquires a strong reference under the lock before using
// the handle and must release it again. Reinit waits for the refcount
// to drop back to zero (no outstanding strong references) before
// tearing the old handle down.
type SharedDisplay struct {
	mu      sync.Mutex
	handle  types.DisplayHandle
	strong  int
}

// Publish replaces the current handle. Callers must only do this once
// Acquire-based consumers have released their references (Strong()==0),
// enforced by the capture task's reinit path, not by Publish itself.
func (s *SharedDisplay) Publish(h types.DisplayHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
}

// Acquire returns the current handle and a release func, or (nil, nil)
// if no handle has been published yet.
func (s *SharedDisplay) Acquire() (types.DisplayHandle, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil, nil
	}
	s.strong++
	h := s.handle
	return h, func() {
		s.mu.Lock()
		s.strong--
		s.mu.Unlock()
	}
}

// Strong reports the current number of outstanding strong references.
func (s *SharedDisplay) Strong() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strong
}
