package registry

import (
	"fmt"
	"sync"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no workflow is registered under an id.
var ErrNotFound = errors.New("workflow not found")

// Logger defines the logging interface for the Registry.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

var knownCategories = map[models.Category]struct{}{
	models.CampaignCategory:  {},
	models.PlanningCategory:  {},
	models.ReportingCategory: {},
	models.GeneralCategory:   {},
}

// Registry maps workflow identifiers to their compiled definitions.
// Definitions are registered once at startup; all reads are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]models.WorkflowDefinition
	order  []string // registration order, for stable listing
	logger Logger
}

func NewRegistry(logger Logger) *Registry {
	return &Registry{
		defs:   make(map[string]models.WorkflowDefinition),
		logger: logger,
	}
}

// Register adds a workflow definition under its id. Duplicate ids, empty
// names and empty stage lists are deployment-time defects and fail fast.
// An unrecognized category falls back to the general category with a
// warning rather than an error.
func (r *Registry) Register(def models.WorkflowDefinition) error {
	if def.ID == "" {
		return errors.New("workflow id cannot be empty")
	}
	if def.Name == "" {
		return fmt.Errorf("workflow '%s' has no name", def.ID)
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("workflow '%s' has no stages", def.ID)
	}
	seen := make(map[string]struct{}, len(def.Stages))
	for _, s := range def.Stages {
		if s.ID == "" {
			return fmt.Errorf("workflow '%s' has a stage with no id", def.ID)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("workflow '%s' declares stage '%s' twice", def.ID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if _, ok := knownCategories[def.Category]; !ok {
		r.logger.Warnf("Workflow '%s' has unrecognized category '%s', using '%s'", def.ID, def.Category, models.GeneralCategory)
		def.Category = models.GeneralCategory
	}
	if def.Trigger == "" {
		def.Trigger = models.ManualTrigger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("workflow '%s' already registered", def.ID)
	}
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	r.logger.Infof("Registered workflow '%s' with %d stages", def.ID, len(def.Stages))
	return nil
}

// Get returns the definition registered under id or ErrNotFound.
func (r *Registry) Get(id string) (models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return models.WorkflowDefinition{}, errors.Wrapf(ErrNotFound, "workflow '%s'", id)
	}
	return def, nil
}

// List returns all definitions in registration order.
func (r *Registry) List() []models.WorkflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.WorkflowDefinition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.defs[id])
	}
	return defs
}

// ByCategory returns the definitions declared under a category.
func (r *Registry) ByCategory(category models.Category) []models.WorkflowDefinition {
	return r.filter(func(def models.WorkflowDefinition) bool {
		return def.Category == category
	})
}

// ByTriggerType returns the definitions with the given trigger type.
func (r *Registry) ByTriggerType(trigger models.TriggerType) []models.WorkflowDefinition {
	return r.filter(func(def models.WorkflowDefinition) bool {
		return def.Trigger == trigger
	})
}

// ByCollaborator returns the definitions that require or optionally use
// the given collaborator.
func (r *Registry) ByCollaborator(id string) []models.WorkflowDefinition {
	return r.filter(func(def models.WorkflowDefinition) bool {
		for _, c := range def.Collaborators {
			if c == id {
				return true
			}
		}
		for _, c := range def.OptionalDeps {
			if c == id {
				return true
			}
		}
		return false
	})
}

func (r *Registry) filter(keep func(models.WorkflowDefinition) bool) []models.WorkflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []models.WorkflowDefinition
	for _, id := range r.order {
		if def := r.defs[id]; keep(def) {
			defs = append(defs, def)
		}
	}
	return defs
}
