package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
)

// executeStage runs one stage through its state machine:
// pending -> running -> completed|failed. The stage_started event precedes
// any stage_progress, and exactly one stage_completed is emitted whether
// the stage succeeded or not, so every subscriber observes a terminal
// event per stage. On success the checkpoint is written before returning.
func (e *Engine) executeStage(ctx context.Context, def models.WorkflowDefinition, idx int, rec *models.ExecutionRecord, inputs map[string]any) models.StageResult {
	stage := def.Stages[idx]
	startedAt := time.Now()
	result := models.StageResult{
		StageID:   stage.ID,
		Name:      stage.Name,
		Status:    models.RunningStageStatus,
		StartedAt: &startedAt,
	}

	log := e.logger.WithFields(map[string]interface{}{
		"execution_id": rec.ID,
		"workflow_id":  def.ID,
		"stage":        stage.ID,
	})

	e.emitter.Emit(models.Event{
		Type:        models.StageStartedEvent,
		ExecutionID: rec.ID,
		WorkflowID:  def.ID,
		StageID:     stage.ID,
		StageName:   stage.Name,
		StageIndex:  idx,
		StageCount:  len(def.Stages),
		Status:      models.RunningStageStatus,
	})
	log.Infof("Stage started (%d/%d)", idx+1, len(def.Stages))

	sc := &StageContext{
		ExecutionID:   rec.ID,
		WorkflowID:    def.ID,
		StageID:       stage.ID,
		Inputs:        inputs,
		Log:           log,
		artifacts:     rec.Artifacts,
		collaborators: e.snapshotCollaborators(),
		progress: func(detail string, data map[string]any) {
			e.emitter.Emit(models.Event{
				Type:        models.StageProgressEvent,
				ExecutionID: rec.ID,
				WorkflowID:  def.ID,
				StageID:     stage.ID,
				StageName:   stage.Name,
				StageIndex:  idx,
				StageCount:  len(def.Stages),
				Status:      models.RunningStageStatus,
				Detail:      detail,
				Data:        data,
			})
		},
	}

	e.mu.RLock()
	fn := e.handlers[def.ID][stage.ID]
	e.mu.RUnlock()

	output, err := invokeStage(ctx, fn, sc)
	finishedAt := time.Now()
	result.FinishedAt = &finishedAt

	if err != nil {
		result.Status = models.FailedStageStatus
		result.Error = err.Error()
		log.Errorf("Stage failed: %v", err)
	} else {
		result.Status = models.CompletedStageStatus
		result.Output = output
		for k, v := range output {
			rec.Artifacts[k] = v
		}
		e.saveCheckpoint(def, idx, rec, result)
		log.Infof("Stage completed in %s", finishedAt.Sub(startedAt).Round(time.Millisecond))
	}

	e.emitter.Emit(models.Event{
		Type:        models.StageCompletedEvent,
		ExecutionID: rec.ID,
		WorkflowID:  def.ID,
		StageID:     stage.ID,
		StageName:   stage.Name,
		StageIndex:  idx,
		StageCount:  len(def.Stages),
		Status:      result.Status,
		Detail:      result.Error,
	})
	return result
}

// invokeStage calls the stage function, converting a panic into an error
// carrying the stack so a buggy stage cannot take down the run.
func invokeStage(ctx context.Context, fn StageFunc, sc *StageContext) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("stage panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, sc)
}

// saveCheckpoint persists the post-stage checkpoint. Checkpointing is an
// optimization, not a correctness requirement for the current run: a
// write failure only degrades the run to non-resumable, it never aborts
// it.
func (e *Engine) saveCheckpoint(def models.WorkflowDefinition, idx int, rec *models.ExecutionRecord, current models.StageResult) {
	cp := models.Checkpoint{
		ExecutionID:        rec.ID,
		WorkflowID:         def.ID,
		LastCompletedStage: current.StageID,
		Artifacts:          copyArtifacts(rec.Artifacts),
	}
	if idx+1 < len(def.Stages) {
		cp.NextStage = def.Stages[idx+1].ID
	}
	for _, s := range rec.Stages {
		if s.Status == models.CompletedStageStatus || s.Status == models.SkippedStageStatus {
			cp.CompletedStages = append(cp.CompletedStages, completedStage(s))
		}
	}
	cp.CompletedStages = append(cp.CompletedStages, completedStage(current))

	if err := e.checkpoints.Save(cp); err != nil {
		e.logger.Errorf("Failed to save checkpoint for execution %s after stage %s, continuing non-resumable: %v", rec.ID, current.StageID, err)
	}
}

func completedStage(s models.StageResult) models.CompletedStage {
	cs := models.CompletedStage{ID: s.StageID, Name: s.Name, Output: s.Output}
	if s.FinishedAt != nil {
		cs.CompletedAt = *s.FinishedAt
	}
	return cs
}

func copyArtifacts(artifacts map[string]any) map[string]any {
	out := make(map[string]any, len(artifacts))
	for k, v := range artifacts {
		out[k] = v
	}
	return out
}

func (e *Engine) snapshotCollaborators() map[string]Collaborator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Collaborator, len(e.collaborators))
	for k, v := range e.collaborators {
		out[k] = v
	}
	return out
}
