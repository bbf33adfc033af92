package facade

import (
	"sync"
	"time"

	"campaign-writer/internal/models"
)

// pendingStore parks results awaiting human approval. Entries past their
// expiry are dropped on access.
type pendingStore struct {
	mu      sync.Mutex
	entries map[string]*models.PendingReview
	now     func() time.Time
}

func newPendingStore(now func() time.Time) *pendingStore {
	return &pendingStore{entries: make(map[string]*models.PendingReview), now: now}
}

func (s *pendingStore) put(p *models.PendingReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[p.RunID] = p
}

func (s *pendingStore) get(runID string) (*models.PendingReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[runID]
	if !ok || s.expiredLocked(p) {
		delete(s.entries, runID)
		return nil, false
	}
	return p, true
}

// take removes and returns the entry, so a run can be decided only once.
func (s *pendingStore) take(runID string) (*models.PendingReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[runID]
	delete(s.entries, runID)
	if !ok || s.expiredLocked(p) {
		return nil, false
	}
	return p, true
}

func (s *pendingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *pendingStore) expiredLocked(p *models.PendingReview) bool {
	return !p.ExpiresAt.IsZero() && !s.now().Before(p.ExpiresAt)
}

func (s *pendingStore) sweepLocked() {
	for id, p := range s.entries {
		if s.expiredLocked(p) {
			delete(s.entries, id)
		}
	}
}
