package api

import (
	"sync"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// runStore holds completed batch results for the life of the process so
// their spreadsheets can be downloaded after the run finishes. Nothing
// survives a restart; each run produces a brand-new artifact.
type runStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.BatchResult
}

func newRunStore() *runStore {
	return &runStore{
		runs: make(map[string]*domain.BatchResult),
	}
}

func (s *runStore) Put(result *domain.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[result.ReportID] = result
}

func (s *runStore) Get(reportID string) (*domain.BatchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.runs[reportID]
	return result, ok
}
