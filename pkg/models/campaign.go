package models

import "time"

type CampaignStatus string

const (
	DraftCampaignStatus  CampaignStatus = "draft"
	ActiveCampaignStatus CampaignStatus = "active"
	PausedCampaignStatus CampaignStatus = "paused"
)

// Campaign is an ad campaign tracked by the command center.
type Campaign struct {
	ID        int64          `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Platform  string         `json:"platform" db:"platform"` // connector identifier, e.g. "google_ads"
	Budget    float64        `json:"budget" db:"budget"`
	Status    CampaignStatus `json:"status" db:"status"`
	ProjectID *int64         `json:"project_id,omitempty" db:"project_id"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Project groups campaigns and the task-tracker work items produced for
// them by the project_tasks stage.
type Project struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Objective string    `json:"objective,omitempty" db:"objective"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
