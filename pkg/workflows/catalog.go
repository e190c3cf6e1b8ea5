// Package workflows holds the built-in workflow catalog: the definitions
// registered at process startup and the stage functions that implement
// them.
package workflows

import (
	"context"
	"fmt"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/connectors"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/pkg/errors"
)

// defaultFanout bounds per-stage parallel connector calls.
const defaultFanout = 4

var adPlatforms = []string{"google_ads", "meta_ads", "linkedin_ads"}

// DefaultCollaborators returns the mock connector set the built-in
// workflows are wired against.
func DefaultCollaborators() []engine.Collaborator {
	return []engine.Collaborator{
		connectors.NewAdPlatform("google_ads", 1.20),
		connectors.NewAdPlatform("meta_ads", 0.80),
		connectors.NewAdPlatform("linkedin_ads", 3.50),
		connectors.NewDocGen(),
		connectors.NewTaskTracker(),
		connectors.NewReporting(),
	}
}

// RegisterAll wires the default collaborators and the built-in workflows
// into the engine. Registration failures are deployment-time defects.
func RegisterAll(e *engine.Engine) error {
	for _, c := range DefaultCollaborators() {
		e.AddCollaborator(c)
	}
	if err := registerDemo(e); err != nil {
		return err
	}
	if err := registerCampaignLaunch(e); err != nil {
		return err
	}
	return registerPerformanceReport(e)
}

func registerDemo(e *engine.Engine) error {
	def := models.WorkflowDefinition{
		ID:       "demo",
		Name:     "Demo Walkthrough",
		Category: models.GeneralCategory,
		Trigger:  models.ManualTrigger,
		Stages: []models.StageDefinition{
			{ID: "brief", Name: "Generate Brief", Agent: "content"},
			{ID: "plan", Name: "Build Media Plan", Agent: "planner"},
			{ID: "report", Name: "Generate Report", Agent: "analyst"},
		},
		Inputs:        map[string]string{"objective": "campaign objective", "budget": "total budget"},
		Collaborators: []string{"docgen", "reporting"},
	}
	return e.Register(def, map[string]engine.StageFunc{
		"brief":  briefStage,
		"plan":   planStage,
		"report": reportStage,
	})
}

func registerCampaignLaunch(e *engine.Engine) error {
	def := models.WorkflowDefinition{
		ID:       "campaign_launch",
		Name:     "Campaign Launch",
		Category: models.CampaignCategory,
		Trigger:  models.ManualTrigger,
		Stages: []models.StageDefinition{
			{ID: "brief", Name: "Generate Brief", Agent: "content"},
			{ID: "media_plan", Name: "Build Media Plan", Agent: "planner"},
			{ID: "project_tasks", Name: "Create Project Tasks", Agent: "ops"},
			{ID: "activate_campaigns", Name: "Activate Campaigns", Agent: "ops"},
			{ID: "report", Name: "Launch Report", Agent: "analyst"},
		},
		Inputs:         map[string]string{"objective": "campaign objective", "budget": "total budget"},
		Collaborators:  []string{"docgen", "tasktracker", "reporting", "google_ads", "meta_ads"},
		OptionalDeps:   []string{"linkedin_ads"},
		IsOrchestrator: true,
	}
	return e.Register(def, map[string]engine.StageFunc{
		"brief":              briefStage,
		"media_plan":         planStage,
		"project_tasks":      projectTasksStage,
		"activate_campaigns": activateCampaignsStage,
		"report":             reportStage,
	})
}

func registerPerformanceReport(e *engine.Engine) error {
	def := models.WorkflowDefinition{
		ID:       "performance_report",
		Name:     "Performance Report",
		Category: models.ReportingCategory,
		Trigger:  models.ScheduledTrigger,
		Stages: []models.StageDefinition{
			{ID: "collect_metrics", Name: "Collect Metrics", Agent: "analyst"},
			{ID: "analyze", Name: "Analyze Performance", Agent: "analyst"},
			{ID: "publish", Name: "Publish Report", Agent: "analyst"},
		},
		Inputs:        map[string]string{"budget": "spend to report on"},
		Collaborators: []string{"reporting", "google_ads", "meta_ads", "linkedin_ads"},
	}
	return e.Register(def, map[string]engine.StageFunc{
		"collect_metrics": collectMetricsStage,
		"analyze":         analyzeStage,
		"publish":         publishStage,
	})
}

// briefStage asks the document generator for a campaign brief.
func briefStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	objective, _ := sc.Inputs["objective"].(string)
	out, err := sc.CallContext(ctx, "docgen", "generate_brief", map[string]any{"objective": objective})
	if err != nil {
		return nil, errors.Wrap(err, "generate brief")
	}
	return map[string]any{
		"brief_id":    out["document_id"],
		"brief_title": out["title"],
	}, nil
}

// planStage splits the budget across channels. It consumes the brief
// produced earlier in the run.
func planStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	if _, ok := sc.Artifact("brief_id"); !ok {
		return nil, errors.New("no brief_id artifact: brief stage output missing")
	}
	budget := inputBudget(sc, 10000)

	channels := []string{"google_ads", "meta_ads"}
	if budget >= 50000 {
		channels = append(channels, "linkedin_ads")
	}
	share := budget / float64(len(channels))
	allocations := make([]map[string]any, len(channels))
	for i, ch := range channels {
		allocations[i] = map[string]any{"channel": ch, "budget": share}
	}
	sc.Log.Infof("Planned %d channels at %.2f each", len(channels), share)
	return map[string]any{
		"media_plan":  allocations,
		"plan_budget": budget,
	}, nil
}

// projectTasksStage fans task creation out to the task tracker, one work
// item per planned channel.
func projectTasksStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	allocations, err := planAllocations(sc)
	if err != nil {
		return nil, err
	}

	results := engine.Map(ctx, allocations, defaultFanout, func(ctx context.Context, i int, alloc map[string]any) (string, error) {
		channel, _ := alloc["channel"].(string)
		out, err := sc.CallContext(ctx, "tasktracker", "create_task", map[string]any{
			"title": fmt.Sprintf("Set up %s campaign", channel),
		})
		if err != nil {
			return "", err
		}
		sc.Progress(fmt.Sprintf("created task for %s", channel), nil)
		ref, _ := out["task_ref"].(string)
		return ref, nil
	})

	taskRefs := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, errors.Wrapf(r.Err, "create task for channel %d", r.Index)
		}
		taskRefs = append(taskRefs, r.Value)
	}
	return map[string]any{"task_refs": taskRefs}, nil
}

// activateCampaignsStage creates and activates one campaign per planned
// channel, fanning the ad-group creation out through the bounded mapper.
func activateCampaignsStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	allocations, err := planAllocations(sc)
	if err != nil {
		return nil, err
	}

	adGroups := []string{"Search - Brand", "Search - Generic", "Display - Retargeting"}

	var campaignRefs []string
	for _, alloc := range allocations {
		channel, _ := alloc["channel"].(string)
		created, err := sc.CallContext(ctx, channel, "create_campaign", alloc)
		if err != nil {
			return nil, errors.Wrapf(err, "create campaign on %s", channel)
		}
		ref, _ := created["campaign_ref"].(string)

		results := engine.Map(ctx, adGroups, defaultFanout, func(ctx context.Context, i int, group string) (string, error) {
			out, err := sc.CallContext(ctx, channel, "create_ad_group", map[string]any{
				"campaign_ref": ref,
				"name":         group,
			})
			if err != nil {
				return "", err
			}
			adRef, _ := out["ad_group_ref"].(string)
			return adRef, nil
		})
		for _, r := range results {
			if r.Err != nil {
				return nil, errors.Wrapf(r.Err, "create ad group '%s' on %s", adGroups[r.Index], channel)
			}
		}

		if _, err := sc.CallContext(ctx, channel, "activate_campaign", map[string]any{"campaign_ref": ref}); err != nil {
			return nil, errors.Wrapf(err, "activate campaign on %s", channel)
		}
		sc.Progress(fmt.Sprintf("activated %s", ref), map[string]any{"channel": channel})
		campaignRefs = append(campaignRefs, ref)
	}
	return map[string]any{"campaign_refs": campaignRefs}, nil
}

// reportStage compiles the end-of-run report from the brief and plan
// artifacts.
func reportStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	title, ok := sc.Artifact("brief_title")
	if !ok {
		return nil, errors.New("no brief_title artifact: brief stage output missing")
	}
	if _, ok := sc.Artifact("media_plan"); !ok {
		return nil, errors.New("no media_plan artifact: plan stage output missing")
	}
	out, err := sc.CallContext(ctx, "reporting", "compile_report", map[string]any{
		"subject": fmt.Sprint(title),
	})
	if err != nil {
		return nil, errors.Wrap(err, "compile report")
	}
	return map[string]any{
		"report_id":      out["report_id"],
		"report_summary": out["summary"],
	}, nil
}

// collectMetricsStage pulls metrics from every ad platform in parallel.
func collectMetricsStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	budget := inputBudget(sc, 5000)

	results := engine.Map(ctx, adPlatforms, defaultFanout, func(ctx context.Context, i int, platform string) (map[string]any, error) {
		out, err := sc.CallContext(ctx, platform, "get_metrics", map[string]any{"budget": budget})
		if err != nil {
			return nil, err
		}
		sc.Progress(fmt.Sprintf("collected %s metrics", platform), nil)
		return out, nil
	})

	metrics := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, errors.Wrapf(r.Err, "metrics from %s", adPlatforms[r.Index])
		}
		metrics = append(metrics, r.Value)
	}
	return map[string]any{"metrics": metrics}, nil
}

func analyzeStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	raw, ok := sc.Artifact("metrics")
	if !ok {
		return nil, errors.New("no metrics artifact: collect_metrics output missing")
	}
	metrics, err := metricsList(raw)
	if err != nil {
		return nil, err
	}

	var totalClicks int64
	var totalSpend float64
	for _, m := range metrics {
		totalClicks += asInt64(m["clicks"])
		if spend, ok := m["spend"].(float64); ok {
			totalSpend += spend
		}
	}
	analysis := map[string]any{
		"total_clicks": totalClicks,
		"total_spend":  totalSpend,
	}
	if totalClicks > 0 {
		analysis["avg_cpc"] = totalSpend / float64(totalClicks)
	}
	return map[string]any{"analysis": analysis}, nil
}

func publishStage(ctx context.Context, sc *engine.StageContext) (map[string]any, error) {
	if _, ok := sc.Artifact("analysis"); !ok {
		return nil, errors.New("no analysis artifact: analyze stage output missing")
	}
	out, err := sc.CallContext(ctx, "reporting", "compile_report", map[string]any{
		"subject": "cross-platform performance",
	})
	if err != nil {
		return nil, errors.Wrap(err, "compile report")
	}
	return map[string]any{"report_id": out["report_id"]}, nil
}

// planAllocations reads the media_plan artifact. On a resumed run the
// artifact has round-tripped through the JSON checkpoint, so it arrives
// as []any rather than []map[string]any.
func planAllocations(sc *engine.StageContext) ([]map[string]any, error) {
	raw, ok := sc.Artifact("media_plan")
	if !ok {
		return nil, errors.New("no media_plan artifact: plan stage output missing")
	}
	switch list := raw.(type) {
	case []map[string]any:
		return list, nil
	case []any:
		allocations := make([]map[string]any, 0, len(list))
		for _, item := range list {
			alloc, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("media_plan entry has unexpected type %T", item)
			}
			allocations = append(allocations, alloc)
		}
		return allocations, nil
	default:
		return nil, errors.Errorf("media_plan artifact has unexpected type %T", raw)
	}
}

// metricsList normalizes the metrics artifact, which is []map[string]any
// on a fresh run and []any after a checkpoint round-trip.
func metricsList(raw any) ([]map[string]any, error) {
	switch list := raw.(type) {
	case []map[string]any:
		return list, nil
	case []any:
		metrics := make([]map[string]any, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("metrics entry has unexpected type %T", item)
			}
			metrics = append(metrics, m)
		}
		return metrics, nil
	default:
		return nil, errors.Errorf("metrics artifact has unexpected type %T", raw)
	}
}

// asInt64 reads a count that may have decayed to float64 via JSON.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func inputBudget(sc *engine.StageContext, fallback float64) float64 {
	switch v := sc.Inputs["budget"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
