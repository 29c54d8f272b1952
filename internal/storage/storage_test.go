package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisStore_SaveAndGet(t *testing.T) {
	s := NewAnalysisStore(10)

	id := s.Save(&models.AnalysisRecord{MinConfidence: 0.98, Result: models.EmptyAnalysisResult()})
	require.NotEmpty(t, id)

	rec, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, 0.98, rec.MinConfidence)
	assert.False(t, rec.CreatedAt.IsZero())

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestAnalysisStore_EvictsOldest(t *testing.T) {
	s := NewAnalysisStore(2)
	for i := 0; i < 3; i++ {
		s.Save(&models.AnalysisRecord{ID: fmt.Sprintf("a%d", i)})
	}

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a0")
	assert.False(t, ok)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "a1", list[1].ID)
}

func TestAnalysisStore_Delete(t *testing.T) {
	s := NewAnalysisStore(5)
	s.Save(&models.AnalysisRecord{ID: "a"})
	s.Save(&models.AnalysisRecord{ID: "b"})
	s.Delete("a")
	s.Delete("missing")

	assert.Equal(t, 1, s.Len())
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestAnalysisStore_Concurrent(t *testing.T) {
	s := NewAnalysisStore(50)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Save(&models.AnalysisRecord{})
			s.Get(id)
			s.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
