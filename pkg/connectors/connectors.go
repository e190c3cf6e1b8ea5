// Package connectors provides the built-in collaborator implementations.
// They return deterministic mock data shaped like the real platform
// responses; the engine only sees the Collaborator contract and does not
// care whether a connector is mocked or live.
package connectors

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// AdPlatform is a mock ad-platform connector (Google Ads, Meta Ads, ...).
type AdPlatform struct {
	name    string
	nextID  atomic.Int64
	costPer float64 // mock cost-per-click used by get_metrics
}

func NewAdPlatform(name string, costPerClick float64) *AdPlatform {
	return &AdPlatform{name: name, costPer: costPerClick}
}

func (p *AdPlatform) Name() string { return p.name }

func (p *AdPlatform) Call(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	switch operation {
	case "create_campaign":
		id := p.nextID.Add(1)
		return map[string]any{
			"campaign_ref": fmt.Sprintf("%s-cmp-%d", p.name, id),
			"platform":     p.name,
			"status":       "draft",
		}, nil
	case "create_ad_group":
		id := p.nextID.Add(1)
		return map[string]any{
			"ad_group_ref": fmt.Sprintf("%s-adg-%d", p.name, id),
			"platform":     p.name,
		}, nil
	case "activate_campaign":
		ref, _ := params["campaign_ref"].(string)
		if ref == "" {
			return nil, errors.New("activate_campaign requires campaign_ref")
		}
		return map[string]any{"campaign_ref": ref, "status": "active"}, nil
	case "get_metrics":
		budget, _ := params["budget"].(float64)
		clicks := int64(budget / p.costPer)
		return map[string]any{
			"platform":    p.name,
			"clicks":      clicks,
			"impressions": clicks * 40,
			"spend":       budget,
		}, nil
	default:
		return nil, errors.Errorf("connector '%s' does not support operation '%s'", p.name, operation)
	}
}

// DocGen is a mock document-generator collaborator.
type DocGen struct {
	nextID atomic.Int64
}

func NewDocGen() *DocGen { return &DocGen{} }

func (d *DocGen) Name() string { return "docgen" }

func (d *DocGen) Call(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	switch operation {
	case "generate_brief":
		objective, _ := params["objective"].(string)
		if objective == "" {
			objective = "brand awareness"
		}
		id := d.nextID.Add(1)
		return map[string]any{
			"document_id": fmt.Sprintf("doc-%d", id),
			"title":       fmt.Sprintf("Campaign brief: %s", objective),
		}, nil
	default:
		return nil, errors.Errorf("connector 'docgen' does not support operation '%s'", operation)
	}
}

// TaskTracker is a mock task-tracker collaborator.
type TaskTracker struct {
	nextID atomic.Int64
}

func NewTaskTracker() *TaskTracker { return &TaskTracker{} }

func (t *TaskTracker) Name() string { return "tasktracker" }

func (t *TaskTracker) Call(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	switch operation {
	case "create_task":
		title, _ := params["title"].(string)
		if title == "" {
			return nil, errors.New("create_task requires title")
		}
		id := t.nextID.Add(1)
		return map[string]any{
			"task_ref": fmt.Sprintf("task-%d", id),
			"title":    title,
			"status":   "open",
		}, nil
	default:
		return nil, errors.Errorf("connector 'tasktracker' does not support operation '%s'", operation)
	}
}

// Reporting is a mock reporting collaborator.
type Reporting struct {
	nextID atomic.Int64
}

func NewReporting() *Reporting { return &Reporting{} }

func (r *Reporting) Name() string { return "reporting" }

func (r *Reporting) Call(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	switch operation {
	case "compile_report":
		subject, _ := params["subject"].(string)
		id := r.nextID.Add(1)
		return map[string]any{
			"report_id": fmt.Sprintf("rpt-%d", id),
			"summary":   fmt.Sprintf("Report on %s compiled", subject),
		}, nil
	default:
		return nil, errors.Errorf("connector 'reporting' does not support operation '%s'", operation)
	}
}
