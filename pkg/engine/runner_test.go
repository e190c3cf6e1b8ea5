package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/checkpoint"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/registry"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(checkpoints checkpoint.Store) *engine.Engine {
	logger := newTestLogger()
	return engine.NewEngine(
		registry.NewRegistry(logger),
		checkpoints,
		engine.NewEmitter(logger),
		storage.NewMockStore(),
		logger,
	)
}

func threeStageDefinition(id string) models.WorkflowDefinition {
	return models.WorkflowDefinition{
		ID:       id,
		Name:     "Three Stages",
		Category: models.GeneralCategory,
		Stages: []models.StageDefinition{
			{ID: "first", Name: "First"},
			{ID: "second", Name: "Second"},
			{ID: "third", Name: "Third"},
		},
	}
}

func TestRunWorkflow_CompletesAndClearsCheckpoint(t *testing.T) {
	checkpoints := checkpoint.NewMemoryStore()
	eng := newTestEngine(checkpoints)

	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return map[string]any{"doc": "doc-1"}, nil
		},
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			doc, ok := sc.Artifact("doc")
			assert.True(t, ok)
			assert.Equal(t, "doc-1", doc)
			return map[string]any{"plan": "plan-1"}, nil
		},
		"third": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			_, ok := sc.Artifact("plan")
			assert.True(t, ok)
			return map[string]any{"report": "rpt-1"}, nil
		},
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.NoError(t, err)

	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedExecutionStatus, rec.Status)
	assert.False(t, rec.Resumed)
	assert.Len(t, rec.Stages, 3)
	for _, s := range rec.Stages {
		assert.Equal(t, models.CompletedStageStatus, s.Status)
	}
	assert.Equal(t, "doc-1", rec.Artifacts["doc"])
	assert.Equal(t, "rpt-1", rec.Artifacts["report"])
	assert.NotNil(t, rec.FinishedAt)

	_, found, err := checkpoints.Load(execID)
	assert.NoError(t, err)
	assert.False(t, found, "checkpoint must be cleared after a clean run")
}

func TestRunWorkflow_ContinuesAfterStageFailure(t *testing.T) {
	checkpoints := checkpoint.NewMemoryStore()
	eng := newTestEngine(checkpoints)

	var thirdCalls atomic.Int64
	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return map[string]any{"a": 1}, nil
		},
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, errors.New("connector unavailable")
		},
		"third": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			thirdCalls.Add(1)
			return map[string]any{"c": 3}, nil
		},
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.NoError(t, err)

	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.PartialExecutionStatus, rec.Status)
	assert.Equal(t, int64(1), thirdCalls.Load(), "stage after a failure must still run")
	assert.Equal(t, models.CompletedStageStatus, rec.Stages[0].Status)
	assert.Equal(t, models.FailedStageStatus, rec.Stages[1].Status)
	assert.Equal(t, "connector unavailable", rec.Stages[1].Error)
	assert.Equal(t, models.CompletedStageStatus, rec.Stages[2].Status)
	assert.Contains(t, rec.Error, "second")
}

func TestRunWorkflow_StagePanicIsIsolated(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())

	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, nil
		},
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			panic("nil map write in stage logic")
		},
		"third": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, nil
		},
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.NoError(t, err)

	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.PartialExecutionStatus, rec.Status)
	assert.Equal(t, models.FailedStageStatus, rec.Stages[1].Status)
	assert.Contains(t, rec.Stages[1].Error, "stage panic")
	assert.Equal(t, models.CompletedStageStatus, rec.Stages[2].Status)
}

func TestRunWorkflow_ResumeSkipsCompletedStages(t *testing.T) {
	checkpoints := checkpoint.NewMemoryStore()
	eng := newTestEngine(checkpoints)

	var firstCalls, secondCalls, thirdCalls atomic.Int64
	var failThird atomic.Bool
	failThird.Store(true)

	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			firstCalls.Add(1)
			return map[string]any{"doc": "doc-1"}, nil
		},
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			secondCalls.Add(1)
			return map[string]any{"plan": "plan-1"}, nil
		},
		"third": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			thirdCalls.Add(1)
			if failThird.Load() {
				return nil, errors.New("flaky reporting backend")
			}
			doc, _ := sc.Artifact("doc")
			return map[string]any{"report": "report for " + doc.(string)}, nil
		},
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{ExecutionID: "exec-resume"})
	assert.NoError(t, err)

	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.PartialExecutionStatus, rec.Status)

	// The checkpoint survives a partial run and points past `second`.
	cp, found, err := checkpoints.Load(execID)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", cp.LastCompletedStage)
	assert.Equal(t, "third", cp.NextStage)
	assert.Len(t, cp.CompletedStages, 2)

	// Simulate the retry after the backend recovered.
	failThird.Store(false)
	_, err = eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{ExecutionID: execID})
	assert.NoError(t, err)

	rec, err = eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedExecutionStatus, rec.Status)
	assert.True(t, rec.Resumed)

	// Completed stages were skipped, not re-run.
	assert.Equal(t, int64(1), firstCalls.Load())
	assert.Equal(t, int64(1), secondCalls.Load())
	assert.Equal(t, int64(2), thirdCalls.Load())
	assert.Equal(t, models.SkippedStageStatus, rec.Stages[0].Status)
	assert.Equal(t, models.SkippedStageStatus, rec.Stages[1].Status)
	assert.Equal(t, models.CompletedStageStatus, rec.Stages[2].Status)

	// Prior outputs are carried into the skipped results and the artifacts.
	assert.Equal(t, map[string]any{"doc": "doc-1"}, rec.Stages[0].Output)
	assert.Equal(t, "report for doc-1", rec.Artifacts["report"])

	_, found, err = checkpoints.Load(execID)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRunWorkflow_EventOrdering(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())

	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			sc.Progress("halfway there", nil)
			sc.Progress("nearly done", nil)
			return nil, nil
		},
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, errors.New("boom")
		},
		"third": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, nil
		},
	})
	assert.NoError(t, err)

	events, unsubscribe := eng.Subscribe()
	defer unsubscribe()

	_, err = eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.NoError(t, err)

	collected := make(map[string][]models.Event)
	timeout := time.After(2 * time.Second)
	// first: started + 2 progress + completed; second and third: started + completed.
	for i := 0; i < 8; i++ {
		select {
		case ev := <-events:
			collected[ev.StageID] = append(collected[ev.StageID], ev)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}

	for stageID, seq := range collected {
		assert.Equal(t, models.StageStartedEvent, seq[0].Type, "stage %s must start with stage_started", stageID)
		last := seq[len(seq)-1]
		assert.Equal(t, models.StageCompletedEvent, last.Type, "stage %s must end with stage_completed", stageID)
		for _, ev := range seq[1 : len(seq)-1] {
			assert.Equal(t, models.StageProgressEvent, ev.Type)
		}
	}
	assert.Len(t, collected["first"], 4)
	assert.Equal(t, models.FailedStageStatus, collected["second"][1].Status, "terminal event carries the failure")
	assert.Equal(t, "boom", collected["second"][1].Detail)
}

func TestRunWorkflow_Queued(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())

	release := make(chan struct{})
	err := eng.Register(models.WorkflowDefinition{
		ID:       "wf",
		Name:     "Slow",
		Category: models.GeneralCategory,
		Stages:   []models.StageDefinition{{ID: "only", Name: "Only"}},
	}, map[string]engine.StageFunc{
		"only": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			<-release
			return nil, nil
		},
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{Queue: true})
	assert.NoError(t, err)

	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.InProgressExecutionStatus, rec.Status)

	close(release)
	assert.Eventually(t, func() bool {
		rec, err := eng.GetExecution(execID)
		return err == nil && rec.Status == models.CompletedExecutionStatus
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunWorkflow_UnknownWorkflow(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())
	_, err := eng.RunWorkflow(context.Background(), "nope", engine.RunOptions{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRunWorkflow_MissingCollaborator(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())
	err := eng.Register(models.WorkflowDefinition{
		ID:            "wf",
		Name:          "Needs Docgen",
		Category:      models.GeneralCategory,
		Collaborators: []string{"docgen"},
		Stages:        []models.StageDefinition{{ID: "only", Name: "Only"}},
	}, map[string]engine.StageFunc{
		"only": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, nil
		},
	})
	assert.NoError(t, err)

	_, err = eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "docgen")
}

func TestRegister_MissingStageFunction(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())
	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
			return nil, nil
		},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no run function")
}

// brokenCheckpoints fails every write, standing in for a full disk.
type brokenCheckpoints struct {
	mu    sync.Mutex
	loads map[string]models.Checkpoint
}

func (b *brokenCheckpoints) Save(cp models.Checkpoint) error {
	return errors.New("disk full")
}

func (b *brokenCheckpoints) Load(executionID string) (models.Checkpoint, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp, ok := b.loads[executionID]
	return cp, ok, nil
}

func (b *brokenCheckpoints) Clear(executionID string) error { return nil }

func TestRunWorkflow_CheckpointWriteFailureDoesNotAbort(t *testing.T) {
	eng := newTestEngine(&brokenCheckpoints{})

	err := eng.Register(threeStageDefinition("wf"), map[string]engine.StageFunc{
		"first":  func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) { return nil, nil },
		"second": func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) { return nil, nil },
		"third":  func(ctx context.Context, sc *engine.StageContext) (map[string]any, error) { return nil, nil },
	})
	assert.NoError(t, err)

	execID, err := eng.RunWorkflow(context.Background(), "wf", engine.RunOptions{})
	assert.NoError(t, err)

	// Checkpointing is an optimization: the run still completes.
	rec, err := eng.GetExecution(execID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedExecutionStatus, rec.Status)
}

func TestGetExecution_Unknown(t *testing.T) {
	eng := newTestEngine(checkpoint.NewMemoryStore())
	_, err := eng.GetExecution("missing")
	assert.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
