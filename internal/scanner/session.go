package scanner

import (
	"sync"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

// Session holds the committed scan state of one currency. Reports are
// only replaced by newer generations.
type Session struct {
	mu        sync.RWMutex
	report    *models.ScanReport
	lastErr   error
	lastErrAt time.Time
	failures  int64
}

// commit stores r unless a newer generation is already committed
func (s *Session) commit(r models.ScanReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil && r.Generation <= s.report.Generation {
		return false
	}
	s.report = &r
	s.lastErr = nil
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = time.Now()
	s.failures++
}

// Latest returns the committed report, if any
func (s *Session) Latest() (models.ScanReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return models.ScanReport{}, false
	}
	return *s.report, true
}

// LastError returns the error of the most recent failed cycle, cleared by
// the next successful commit.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) LastErrorAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrAt
}

func (s *Session) Failures() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures
}
