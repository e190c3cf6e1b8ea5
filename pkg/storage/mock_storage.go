package storage

import (
	"sync"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/pkg/errors"
)

// mockStore implements Store with in-memory storage.
type mockStore struct {
	mu         sync.RWMutex
	campaigns  []models.Campaign
	projects   []models.Project
	executions map[string]models.ExecutionRecord
	nextID     int64
}

func NewMockStore() Store {
	return &mockStore{executions: make(map[string]models.ExecutionRecord)}
}

// Begin returns the store itself: the mock has no transaction isolation,
// Commit and Rollback are accepted and ignored.
func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveCampaign(c models.Campaign) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	m.campaigns = append(m.campaigns, c)
	return c.ID, nil
}

func (m *mockStore) GetCampaign(id int64) (models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Campaign{}, errors.Wrapf(ErrNotFound, "campaign %d", id)
}

func (m *mockStore) ListCampaigns() ([]models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Campaign(nil), m.campaigns...), nil
}

func (m *mockStore) UpdateCampaignStatus(id int64, status models.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.campaigns {
		if c.ID == id {
			m.campaigns[i].Status = status
			m.campaigns[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.Wrapf(ErrNotFound, "campaign %d", id)
}

func (m *mockStore) SaveProject(p models.Project) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.projects = append(m.projects, p)
	return p.ID, nil
}

func (m *mockStore) GetProject(id int64) (models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Project{}, errors.Wrapf(ErrNotFound, "project %d", id)
}

func (m *mockStore) ListProjects() ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Project(nil), m.projects...), nil
}

func (m *mockStore) SaveExecution(e models.ExecutionRecord) error {
	if e.ID == "" {
		return errors.New("execution has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[e.ID] = e
	return nil
}

func (m *mockStore) GetExecution(id string) (models.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[id]
	if !ok {
		return models.ExecutionRecord{}, errors.Wrapf(ErrNotFound, "execution %s", id)
	}
	return e, nil
}

func (m *mockStore) ListExecutions(workflowID string) ([]models.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ExecutionRecord
	for _, e := range m.executions {
		if workflowID == "" || e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}
