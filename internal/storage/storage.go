package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// AnalysisStore keeps the most recent analysis runs in memory.
// When full, the oldest record is evicted.
type AnalysisStore struct {
	records map[string]*models.AnalysisRecord
	order   []string
	max     int
	mu      sync.RWMutex
}

func NewAnalysisStore(max int) *AnalysisStore {
	if max <= 0 {
		max = 1
	}
	return &AnalysisStore{
		records: make(map[string]*models.AnalysisRecord),
		max:     max,
	}
}

// Save stores rec, assigning an ID and timestamp when missing, and returns the ID
func (s *AnalysisStore) Save(rec *models.AnalysisRecord) string {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec

	for len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
	return rec.ID
}

func (s *AnalysisStore) Get(id string) (*models.AnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.records[id]
	return rec, exists
}

// List returns stored records, newest first
func (s *AnalysisStore) List() []*models.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.AnalysisRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		result = append(result, s.records[s.order[i]])
	}
	return result
}

func (s *AnalysisStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *AnalysisStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
