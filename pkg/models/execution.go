package models

import "time"

type ExecutionStatus string

const (
	InProgressExecutionStatus ExecutionStatus = "in_progress"
	CompletedExecutionStatus  ExecutionStatus = "completed"
	PartialExecutionStatus    ExecutionStatus = "partial"
	FailedExecutionStatus     ExecutionStatus = "failed"
)

type StageStatus string

const (
	PendingStageStatus   StageStatus = "pending"
	RunningStageStatus   StageStatus = "running"
	CompletedStageStatus StageStatus = "completed"
	FailedStageStatus    StageStatus = "failed"
	SkippedStageStatus   StageStatus = "skipped"
)

// StageResult records the outcome of one stage within an execution.
type StageResult struct {
	StageID    string         `json:"stage_id"`
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Output     map[string]any `json:"output,omitempty"` // stage-specific, opaque to the engine
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// ExecutionRecord is the mutable state of one workflow run. It is owned
// exclusively by the runner for the lifetime of the execution and never
// shared across executions.
type ExecutionRecord struct {
	ID         string          `json:"id" db:"id"`
	WorkflowID string          `json:"workflow_id" db:"workflow_id"`
	Status     ExecutionStatus `json:"status" db:"status"`
	Stages     []StageResult   `json:"stages"`
	Artifacts  map[string]any  `json:"artifacts"` // accumulating stage outputs, keyed by artifact name
	Error      string          `json:"error,omitempty" db:"error_msg"`
	Resumed    bool            `json:"resumed_from_checkpoint" db:"resumed"`
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}

// FailedStages returns the identifiers of stages that failed, in order.
func (e ExecutionRecord) FailedStages() []string {
	var failed []string
	for _, s := range e.Stages {
		if s.Status == FailedStageStatus {
			failed = append(failed, s.StageID)
		}
	}
	return failed
}
