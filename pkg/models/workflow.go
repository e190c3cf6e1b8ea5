package models

// Category groups workflows on the dashboard.
type Category string

const (
	CampaignCategory  Category = "campaign"
	PlanningCategory  Category = "planning"
	ReportingCategory Category = "reporting"
	GeneralCategory   Category = "general" // fallback for unrecognized categories
)

// TriggerType describes how a workflow run is initiated.
type TriggerType string

const (
	ManualTrigger    TriggerType = "manual"
	ScheduledTrigger TriggerType = "scheduled"
	EventTrigger     TriggerType = "event"
)

// StageDefinition describes one named unit of work within a workflow.
// Agent is a collaborating-agent label carried as metadata only; the
// engine never dispatches on it.
type StageDefinition struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Agent string `json:"agent,omitempty"`
}

// WorkflowDefinition is the immutable description of a workflow: its
// ordered stage list plus the metadata the registry indexes on. Definitions
// are built once at process startup and never mutated afterwards.
type WorkflowDefinition struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Category       Category          `json:"category"`
	Trigger        TriggerType       `json:"trigger"`
	Stages         []StageDefinition `json:"stages"`
	Inputs         map[string]string `json:"inputs,omitempty"`        // declared input name -> description
	Collaborators  []string          `json:"collaborators,omitempty"` // required collaborator identifiers
	OptionalDeps   []string          `json:"optional_deps,omitempty"` // optional collaborator identifiers
	IsOrchestrator bool              `json:"is_orchestrator"`         // may invoke sub-workflows
}

// StageIDs returns the stage identifiers in declared order.
func (d WorkflowDefinition) StageIDs() []string {
	ids := make([]string, len(d.Stages))
	for i, s := range d.Stages {
		ids[i] = s.ID
	}
	return ids
}
