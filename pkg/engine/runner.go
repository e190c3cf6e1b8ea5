package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/google/uuid"
)

// RunWorkflow starts one execution of a registered workflow and returns
// its execution id. With opts.Queue the run proceeds in the background;
// otherwise the call blocks until the run reaches a terminal status.
// Unknown workflow ids and missing required collaborators are caller
// errors and surface here; once a run has started, no failure escapes as
// an error — everything terminal lands on the ExecutionRecord.
func (e *Engine) RunWorkflow(ctx context.Context, workflowID string, opts RunOptions) (string, error) {
	def, err := e.registry.Get(workflowID)
	if err != nil {
		return "", err
	}
	if missing := e.missingCollaborators(def); len(missing) > 0 {
		return "", fmt.Errorf("workflow '%s' requires unavailable collaborators: %s", def.ID, strings.Join(missing, ", "))
	}

	executionID := opts.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}

	e.mu.Lock()
	if existing, ok := e.executions[executionID]; ok && existing.Status == models.InProgressExecutionStatus {
		e.mu.Unlock()
		return "", fmt.Errorf("execution '%s' already running", executionID)
	}
	e.mu.Unlock()

	rec := &models.ExecutionRecord{
		ID:         executionID,
		WorkflowID: def.ID,
		Status:     models.InProgressExecutionStatus,
		Artifacts:  make(map[string]any),
		StartedAt:  time.Now(),
	}
	e.publish(rec)
	e.persistExecution(rec)

	if opts.Queue {
		// Queued runs outlive the caller's request context. No stage
		// cancellation mechanism exists, so there is nothing to tie the
		// caller's context to (known gap, kept as designed).
		go e.run(context.Background(), def, rec, opts.Inputs)
		return executionID, nil
	}
	e.run(ctx, def, rec, opts.Inputs)
	return executionID, nil
}

// run drives the full ordered stage list for one execution.
func (e *Engine) run(ctx context.Context, def models.WorkflowDefinition, rec *models.ExecutionRecord, inputs map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.failRun(def, rec, fmt.Errorf("workflow runner panic: %v\n%s", r, debug.Stack()))
		}
	}()

	completed := e.detectResume(rec)

	for idx := range def.Stages {
		stage := def.Stages[idx]
		if prior, ok := completed[stage.ID]; ok {
			// Already done per the checkpoint: materialize a skipped
			// result carrying the prior output and never re-invoke the
			// stage function.
			skipped := models.StageResult{
				StageID: stage.ID,
				Name:    stage.Name,
				Status:  models.SkippedStageStatus,
				Output:  prior.Output,
			}
			rec.Stages = append(rec.Stages, skipped)
			e.logger.Infof("Skipping stage %s of execution %s: completed before resume", stage.ID, rec.ID)
			e.publish(rec)
			continue
		}

		result := e.runStage(ctx, def, idx, rec, inputs)
		rec.Stages = append(rec.Stages, result)
		e.publish(rec)
		e.persistExecution(rec)
	}

	finishedAt := time.Now()
	rec.FinishedAt = &finishedAt
	if failed := rec.FailedStages(); len(failed) > 0 {
		rec.Status = models.PartialExecutionStatus
		rec.Error = fmt.Sprintf("stages failed: %s", strings.Join(failed, ", "))
		e.logger.Errorf("Execution %s of workflow '%s' finished partial, failed stages: %v", rec.ID, def.ID, failed)
	} else {
		rec.Status = models.CompletedExecutionStatus
		if err := e.checkpoints.Clear(rec.ID); err != nil {
			e.logger.Errorf("Failed to clear checkpoint for execution %s: %v", rec.ID, err)
		}
		e.logger.Infof("Execution %s of workflow '%s' completed", rec.ID, def.ID)
	}
	e.publish(rec)
	e.persistExecution(rec)
}

// runStage is the runner-level error boundary around the stage executor.
// The executor already converts stage errors and panics into failed
// results; this second boundary catches defects in the execution plumbing
// itself so one broken stage can never abort the remaining stages.
func (e *Engine) runStage(ctx context.Context, def models.WorkflowDefinition, idx int, rec *models.ExecutionRecord, inputs map[string]any) (result models.StageResult) {
	stage := def.Stages[idx]
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("Stage %s of execution %s panicked outside the executor: %v", stage.ID, rec.ID, r)
			finishedAt := time.Now()
			result = models.StageResult{
				StageID:    stage.ID,
				Name:       stage.Name,
				Status:     models.FailedStageStatus,
				Error:      fmt.Sprintf("stage panic: %v", r),
				FinishedAt: &finishedAt,
			}
		}
	}()
	return e.executeStage(ctx, def, idx, rec, inputs)
}

// detectResume loads the checkpoint for this execution, if any, and
// primes the record with the persisted artifacts. A checkpoint read
// failure means a fresh (non-resumed) run, never an aborted one.
func (e *Engine) detectResume(rec *models.ExecutionRecord) map[string]models.CompletedStage {
	cp, found, err := e.checkpoints.Load(rec.ID)
	if err != nil {
		e.logger.Errorf("Failed to load checkpoint for execution %s, starting fresh: %v", rec.ID, err)
		return nil
	}
	if !found {
		return nil
	}
	rec.Resumed = true
	for k, v := range cp.Artifacts {
		rec.Artifacts[k] = v
	}
	e.logger.Infof("Resuming execution %s of workflow '%s' after stage %s", rec.ID, rec.WorkflowID, cp.LastCompletedStage)
	return cp.CompletedSet()
}

// failRun records a runner-level failure: terminal status failed plus a
// best-effort checkpoint at the last completed stage so a future resume
// is still possible.
func (e *Engine) failRun(def models.WorkflowDefinition, rec *models.ExecutionRecord, cause error) {
	finishedAt := time.Now()
	rec.FinishedAt = &finishedAt
	rec.Status = models.FailedExecutionStatus
	rec.Error = cause.Error()
	e.logger.Errorf("Execution %s of workflow '%s' failed: %v", rec.ID, def.ID, cause)

	cp := models.Checkpoint{
		ExecutionID: rec.ID,
		WorkflowID:  def.ID,
		Artifacts:   copyArtifacts(rec.Artifacts),
		Error:       cause.Error(),
	}
	for _, s := range rec.Stages {
		if s.Status == models.CompletedStageStatus || s.Status == models.SkippedStageStatus {
			cp.CompletedStages = append(cp.CompletedStages, completedStage(s))
			cp.LastCompletedStage = s.StageID
		}
	}
	if err := e.checkpoints.Save(cp); err != nil {
		e.logger.Errorf("Failed to write failure checkpoint for execution %s: %v", rec.ID, err)
	}
	e.publish(rec)
	e.persistExecution(rec)
}

// missingCollaborators returns the required collaborator ids that are not
// registered with the engine.
func (e *Engine) missingCollaborators(def models.WorkflowDefinition) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var missing []string
	for _, id := range def.Collaborators {
		if _, ok := e.collaborators[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// publish stores an immutable snapshot of the record for GetExecution.
func (e *Engine) publish(rec *models.ExecutionRecord) {
	snap := copyRecord(rec)
	e.mu.Lock()
	e.executions[rec.ID] = &snap
	e.mu.Unlock()
}

// persistExecution writes the record through the store. Persistence of
// the record is for the API and history views; a write failure is logged
// and the run carries on.
func (e *Engine) persistExecution(rec *models.ExecutionRecord) {
	txStore, err := e.store.Begin()
	if err != nil {
		e.logger.Errorf("Failed to begin transaction for execution %s: %v", rec.ID, err)
		return
	}
	if err := txStore.SaveExecution(copyRecord(rec)); err != nil {
		e.logger.Errorf("Failed to persist execution %s: %v", rec.ID, err)
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			e.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
		}
		return
	}
	if commitErr := txStore.Commit(); commitErr != nil {
		e.logger.Errorf("Failed to commit execution %s: %v", rec.ID, commitErr)
	}
}
