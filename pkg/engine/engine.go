package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/checkpoint"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/registry"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Collaborator is the narrow contract the engine needs from any external
// system a stage talks to (ad connectors, document generators, task
// trackers): call a named operation with parameters, get back a result or
// an error. What the operation does is opaque here.
type Collaborator interface {
	Name() string
	Call(ctx context.Context, operation string, params map[string]any) (map[string]any, error)
}

// StageFunc is the unit of work for one stage. The returned map is merged
// into the execution's artifact map on success.
type StageFunc func(ctx context.Context, sc *StageContext) (map[string]any, error)

// StageContext is what a running stage may touch: the accumulated
// artifacts (read), its collaborators, a structured logger carrying the
// execution/workflow/stage identity, and a progress callback bound to
// this stage.
type StageContext struct {
	ExecutionID string
	WorkflowID  string
	StageID     string
	Inputs      map[string]any
	Log         *logrus.Entry

	artifacts     map[string]any
	collaborators map[string]Collaborator
	progress      func(detail string, data map[string]any)
}

// Artifact reads a value accumulated by an earlier stage.
func (sc *StageContext) Artifact(key string) (any, bool) {
	v, ok := sc.artifacts[key]
	return v, ok
}

// Progress emits a stage_progress event for this stage.
func (sc *StageContext) Progress(detail string, data map[string]any) {
	sc.progress(detail, data)
}

// Call invokes an operation on a named collaborator.
func (sc *StageContext) Call(collaborator, operation string, params map[string]any) (map[string]any, error) {
	c, ok := sc.collaborators[collaborator]
	if !ok {
		return nil, fmt.Errorf("collaborator '%s' not available", collaborator)
	}
	return c.Call(context.Background(), operation, params)
}

// CallContext is Call with an explicit context for stages that thread one
// through to their collaborators.
func (sc *StageContext) CallContext(ctx context.Context, collaborator, operation string, params map[string]any) (map[string]any, error) {
	c, ok := sc.collaborators[collaborator]
	if !ok {
		return nil, fmt.Errorf("collaborator '%s' not available", collaborator)
	}
	return c.Call(ctx, operation, params)
}

// RunOptions configures one execution.
type RunOptions struct {
	ExecutionID string         // caller-supplied id; generated when empty
	Queue       bool           // run in the background, return immediately
	Inputs      map[string]any // workflow-specific inputs
}

// Engine runs registered workflows: it resolves definitions from the
// registry, executes their stages in declared order, checkpoints progress
// after each completed stage and emits lifecycle events. Stages within one
// execution run strictly sequentially; concurrency happens only inside a
// stage through Map.
type Engine struct {
	registry      *registry.Registry
	checkpoints   checkpoint.Store
	emitter       *Emitter
	store         storage.Store
	collaborators map[string]Collaborator
	logger        logrus.FieldLogger

	mu         sync.RWMutex
	handlers   map[string]map[string]StageFunc
	executions map[string]*models.ExecutionRecord
}

func NewEngine(reg *registry.Registry, checkpoints checkpoint.Store, emitter *Emitter, store storage.Store, logger logrus.FieldLogger) *Engine {
	return &Engine{
		registry:      reg,
		checkpoints:   checkpoints,
		emitter:       emitter,
		store:         store,
		collaborators: make(map[string]Collaborator),
		logger:        logger,
		handlers:      make(map[string]map[string]StageFunc),
		executions:    make(map[string]*models.ExecutionRecord),
	}
}

// AddCollaborator makes a collaborator available to stage functions.
func (e *Engine) AddCollaborator(c Collaborator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collaborators[c.Name()] = c
}

// Register registers a workflow definition together with the stage
// functions that implement it. A stage without a function is a
// deployment-time defect and fails fast.
func (e *Engine) Register(def models.WorkflowDefinition, handlers map[string]StageFunc) error {
	for _, stage := range def.Stages {
		if _, ok := handlers[stage.ID]; !ok {
			return fmt.Errorf("workflow '%s': stage '%s' has no run function", def.ID, stage.ID)
		}
	}
	if err := e.registry.Register(def); err != nil {
		return err
	}
	e.mu.Lock()
	e.handlers[def.ID] = handlers
	e.mu.Unlock()
	return nil
}

// Registry exposes read access to the workflow definitions.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Subscribe attaches a listener to the engine's event stream.
func (e *Engine) Subscribe() (<-chan models.Event, func()) {
	return e.emitter.Subscribe(0)
}

// GetExecution returns the current state of an execution: the live record
// for an in-flight run, or the persisted one for a finished run.
func (e *Engine) GetExecution(executionID string) (models.ExecutionRecord, error) {
	e.mu.RLock()
	rec, ok := e.executions[executionID]
	e.mu.RUnlock()
	if ok {
		return copyRecord(rec), nil
	}
	stored, err := e.store.GetExecution(executionID)
	if err != nil {
		return models.ExecutionRecord{}, errors.Wrapf(err, "execution '%s'", executionID)
	}
	return stored, nil
}

// copyRecord snapshots a live record so callers never observe a map the
// running stage is still appending to.
func copyRecord(rec *models.ExecutionRecord) models.ExecutionRecord {
	out := *rec
	out.Stages = append([]models.StageResult(nil), rec.Stages...)
	out.Artifacts = make(map[string]any, len(rec.Artifacts))
	for k, v := range rec.Artifacts {
		out.Artifacts[k] = v
	}
	return out
}
