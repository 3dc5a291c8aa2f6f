package cases

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*threat.Record
	order []string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*threat.Record)}
}

// Save implements Repository.
func (m *MemoryRepository) Save(_ context.Context, rec *threat.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[rec.CaseID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCase, rec.CaseID)
	}
	m.byID[rec.CaseID] = cloneRecord(rec)
	m.order = append(m.order, rec.CaseID)
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, caseID string) (*threat.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[caseID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List implements Repository.
func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]*threat.Record, error) {
	limit, offset = clampPage(limit, offset)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*threat.Record, 0, limit)
	for i := len(m.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneRecord(m.byID[m.order[i]]))
	}
	return out, nil
}
