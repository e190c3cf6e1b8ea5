package checkpoint

import (
	"sync"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
)

// memoryStore implements Store with in-memory storage, for tests and for
// runs where durability is explicitly not wanted.
type memoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]models.Checkpoint
}

func NewMemoryStore() Store {
	return &memoryStore{checkpoints: make(map[string]models.Checkpoint)}
}

func (m *memoryStore) Save(cp models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.SavedAt = time.Now()
	m.checkpoints[cp.ExecutionID] = cp
	return nil
}

func (m *memoryStore) Load(executionID string) (models.Checkpoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[executionID]
	return cp, ok, nil
}

func (m *memoryStore) Clear(executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, executionID)
	return nil
}
