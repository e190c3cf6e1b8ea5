package storage

import (
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations for the command center.
// Begin returns a transactional view of the same interface; Commit and
// Rollback are no-ops outside a transaction.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Campaign operations
	SaveCampaign(c models.Campaign) (int64, error)
	GetCampaign(id int64) (models.Campaign, error)
	ListCampaigns() ([]models.Campaign, error)
	UpdateCampaignStatus(id int64, status models.CampaignStatus) error

	// Project operations
	SaveProject(p models.Project) (int64, error)
	GetProject(id int64) (models.Project, error)
	ListProjects() ([]models.Project, error)

	// Execution operations. SaveExecution upserts by execution id.
	SaveExecution(e models.ExecutionRecord) error
	GetExecution(id string) (models.ExecutionRecord, error)
	ListExecutions(workflowID string) ([]models.ExecutionRecord, error)
}
