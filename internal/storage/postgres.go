package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveCampaign creates a new campaign and returns its ID
func (s *PostgresStore) SaveCampaign(c models.Campaign) (int64, error) {
	var id int64
	err := s.db.QueryRowx(
		"INSERT INTO campaigns (name, platform, budget, status, project_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id",
		c.Name, c.Platform, c.Budget, c.Status, c.ProjectID, c.CreatedAt, c.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save campaign: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetCampaign(id int64) (models.Campaign, error) {
	var c models.Campaign
	err := s.db.Get(&c, "SELECT * FROM campaigns WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Campaign{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListCampaigns() ([]models.Campaign, error) {
	campaigns := []models.Campaign{}
	err := s.db.Select(&campaigns, "SELECT * FROM campaigns ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *PostgresStore) UpdateCampaignStatus(id int64, status models.CampaignStatus) error {
	_, err := s.db.Exec("UPDATE campaigns SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", status, id)
	return err
}

// SaveProject creates a new project and returns its ID
func (s *PostgresStore) SaveProject(p models.Project) (int64, error) {
	var id int64
	err := s.db.QueryRowx(
		"INSERT INTO projects (name, objective, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		p.Name, p.Objective, p.Status, p.CreatedAt, p.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save project: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetProject(id int64) (models.Project, error) {
	var p models.Project
	err := s.db.Get(&p, "SELECT * FROM projects WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Project{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects() ([]models.Project, error) {
	projects := []models.Project{}
	err := s.db.Select(&projects, "SELECT * FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// executionRow maps the executions table; stage results and artifacts are
// stored as JSONB documents.
type executionRow struct {
	ID         string       `db:"id"`
	WorkflowID string       `db:"workflow_id"`
	Status     string       `db:"status"`
	Stages     []byte       `db:"stages"`
	Artifacts  []byte       `db:"artifacts"`
	ErrorMsg   string       `db:"error_msg"`
	Resumed    bool         `db:"resumed"`
	StartedAt  sql.NullTime `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r executionRow) toModel() (models.ExecutionRecord, error) {
	rec := models.ExecutionRecord{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		Status:     models.ExecutionStatus(r.Status),
		Error:      r.ErrorMsg,
		Resumed:    r.Resumed,
	}
	if r.StartedAt.Valid {
		rec.StartedAt = r.StartedAt.Time
	}
	if r.FinishedAt.Valid {
		finished := r.FinishedAt.Time
		rec.FinishedAt = &finished
	}
	if len(r.Stages) > 0 {
		if err := json.Unmarshal(r.Stages, &rec.Stages); err != nil {
			return models.ExecutionRecord{}, fmt.Errorf("decode stages for execution %s: %w", r.ID, err)
		}
	}
	if len(r.Artifacts) > 0 {
		if err := json.Unmarshal(r.Artifacts, &rec.Artifacts); err != nil {
			return models.ExecutionRecord{}, fmt.Errorf("decode artifacts for execution %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// SaveExecution upserts the execution record by id
func (s *PostgresStore) SaveExecution(e models.ExecutionRecord) error {
	stages, err := json.Marshal(e.Stages)
	if err != nil {
		return fmt.Errorf("encode stages for execution %s: %w", e.ID, err)
	}
	artifacts, err := json.Marshal(e.Artifacts)
	if err != nil {
		return fmt.Errorf("encode artifacts for execution %s: %w", e.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO executions (id, workflow_id, status, stages, artifacts, error_msg, resumed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			stages = EXCLUDED.stages,
			artifacts = EXCLUDED.artifacts,
			error_msg = EXCLUDED.error_msg,
			resumed = EXCLUDED.resumed,
			finished_at = EXCLUDED.finished_at`,
		e.ID, e.WorkflowID, e.Status, stages, artifacts, e.Error, e.Resumed, e.StartedAt, e.FinishedAt)
	return err
}

func (s *PostgresStore) GetExecution(id string) (models.ExecutionRecord, error) {
	var row executionRow
	err := s.db.Get(&row, "SELECT * FROM executions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.ExecutionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return models.ExecutionRecord{}, fmt.Errorf("get execution %s: %w", id, err)
	}
	return row.toModel()
}

func (s *PostgresStore) ListExecutions(workflowID string) ([]models.ExecutionRecord, error) {
	var rows []executionRow
	var err error
	if workflowID == "" {
		err = s.db.Select(&rows, "SELECT * FROM executions ORDER BY started_at DESC")
	} else {
		err = s.db.Select(&rows, "SELECT * FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC", workflowID)
	}
	if err != nil {
		return nil, err
	}
	executions := make([]models.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		executions = append(executions, rec)
	}
	return executions, nil
}
