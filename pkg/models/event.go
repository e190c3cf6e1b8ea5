package models

import "time"

type EventType string

const (
	StageStartedEvent   EventType = "stage_started"
	StageProgressEvent  EventType = "stage_progress"
	StageCompletedEvent EventType = "stage_completed"
)

// Event is a transient stage lifecycle notification. Events are never
// persisted by the engine; downstream consumers (the SSE stream, the UI)
// decide what to do with them.
type Event struct {
	Type        EventType      `json:"type"`
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	StageID     string         `json:"stage_id"`
	StageName   string         `json:"stage_name"`
	StageIndex  int            `json:"stage_index"`
	StageCount  int            `json:"stage_count"`
	Status      StageStatus    `json:"status,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
