package chunkuploader

import (
	"sync"
	"time"
)

// Stats keeps the durations of finished parts for hung detection.
type Stats struct {
	mu       sync.Mutex
	sum      time.Duration
	finished int64
}

// NewStats ...
func NewStats() *Stats {
	return &Stats{}
}

// Update records a finished part.
func (s *Stats) Update(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.finished++
}

// Average is zero until a part finished.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finished)
}

// FinishedCount ...
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}
