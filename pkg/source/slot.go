// Package source runs lyric fillers concurrently against one track and
// picks the best result from their write-once slots.
package source

import (
	"sync"

	"lyrics-engine/pkg/lyric"
)

// Slot holds one source's answer for one race. It is written at most once;
// a nil result after the write means the source missed.
type Slot struct {
	id string

	once   sync.Once
	mu     sync.RWMutex
	filled bool
	result *lyric.SourceResult

	updates chan<- string
}

// ID 来源标识
func (s *Slot) ID() string {
	return s.id
}

// Filled reports whether the owning filler has answered.
func (s *Slot) Filled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filled
}

// Result 已填充的结果，未命中时为 nil
func (s *Slot) Result() *lyric.SourceResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// fill writes the slot and returns false when it was already written.
func (s *Slot) fill(res *lyric.SourceResult) bool {
	wrote := false
	s.once.Do(func() {
		s.mu.Lock()
		s.filled = true
		s.result = res
		s.mu.Unlock()
		wrote = true
		s.updates <- s.id
	})
	return wrote
}
