package models

import "time"

// CompletedStage is the per-stage summary persisted in a checkpoint.
type CompletedStage struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Output      map[string]any `json:"output,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Checkpoint is the durable projection of an execution sufficient to
// resume it: the artifact map plus which stages already ran. Exactly one
// checkpoint exists per execution id; it is overwritten after every
// completed stage and removed when the run finishes clean.
type Checkpoint struct {
	ExecutionID        string           `json:"execution_id"`
	WorkflowID         string           `json:"workflow_id"`
	LastCompletedStage string           `json:"last_completed_stage"`
	NextStage          string           `json:"next_stage,omitempty"`
	Artifacts          map[string]any   `json:"artifacts"`
	CompletedStages    []CompletedStage `json:"completed_stages"`
	Error              string           `json:"error,omitempty"`
	SavedAt            time.Time        `json:"saved_at"`
}

// CompletedSet returns the identifiers of completed stages for resume
// lookups.
func (c Checkpoint) CompletedSet() map[string]CompletedStage {
	set := make(map[string]CompletedStage, len(c.CompletedStages))
	for _, s := range c.CompletedStages {
		set[s.ID] = s
	}
	return set
}
