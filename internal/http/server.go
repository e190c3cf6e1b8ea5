package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/internal/log"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/registry"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/storage"
	"github.com/pkg/errors"
)

// NewMux assembles the API routes.
func NewMux(eng *engine.Engine, store storage.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/api/workflows", WorkflowsHandler(eng))
	mux.HandleFunc("/api/workflows/", WorkflowByIDHandler(eng))
	mux.HandleFunc("/api/executions", ExecutionsHandler(store))
	mux.HandleFunc("/api/executions/", ExecutionByIDHandler(eng))
	mux.HandleFunc("/api/campaigns", CampaignsHandler(store))
	mux.HandleFunc("/api/projects", ProjectsHandler(store))
	mux.HandleFunc("/api/stream", StreamHandler(eng))
	return mux
}

func StartServer(port string, eng *engine.Engine, store storage.Store) error {
	log.GetLogger().Infof("Starting ad-ops command center on :%s", port)
	return http.ListenAndServe(":"+port, NewMux(eng, store))
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ad-ops command center is running")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// WorkflowsHandler lists registered workflow definitions, optionally
// filtered by category, trigger or collaborator.
func WorkflowsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		reg := eng.Registry()
		var defs []models.WorkflowDefinition
		switch {
		case r.URL.Query().Get("category") != "":
			defs = reg.ByCategory(models.Category(r.URL.Query().Get("category")))
		case r.URL.Query().Get("trigger") != "":
			defs = reg.ByTriggerType(models.TriggerType(r.URL.Query().Get("trigger")))
		case r.URL.Query().Get("collaborator") != "":
			defs = reg.ByCollaborator(r.URL.Query().Get("collaborator"))
		default:
			defs = reg.List()
		}
		writeJSON(w, http.StatusOK, defs)
	}
}

type runRequest struct {
	Queue       bool           `json:"queue"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// WorkflowByIDHandler serves GET /api/workflows/{id} and
// POST /api/workflows/{id}/run.
func WorkflowByIDHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/workflows/")
		id, action, _ := strings.Cut(rest, "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "workflow id required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			def, err := eng.Registry().Get(id)
			if err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, def)
		case action == "run" && r.Method == http.MethodPost:
			var req runRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
			execID, err := eng.RunWorkflow(r.Context(), id, engine.RunOptions{
				Queue:       req.Queue,
				ExecutionID: req.ExecutionID,
				Inputs:      req.Inputs,
			})
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, registry.ErrNotFound) {
					status = http.StatusNotFound
				}
				writeError(w, status, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": execID})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// ExecutionsHandler lists executions, optionally filtered by workflow_id.
func ExecutionsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		executions, err := store.ListExecutions(r.URL.Query().Get("workflow_id"))
		if err != nil {
			log.GetLogger().Errorf("Failed to list executions: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list executions")
			return
		}
		writeJSON(w, http.StatusOK, executions)
	}
}

// ExecutionByIDHandler serves GET /api/executions/{id} from the engine, so
// in-flight runs report live stage state.
func ExecutionByIDHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/executions/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "execution id required")
			return
		}
		rec, err := eng.GetExecution(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type campaignRequest struct {
	Name      string  `json:"name"`
	Platform  string  `json:"platform"`
	Budget    float64 `json:"budget"`
	ProjectID *int64  `json:"project_id,omitempty"`
}

func CampaignsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			campaigns, err := store.ListCampaigns()
			if err != nil {
				log.GetLogger().Errorf("Failed to list campaigns: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to list campaigns")
				return
			}
			writeJSON(w, http.StatusOK, campaigns)
		case http.MethodPost:
			var req campaignRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
			if req.Name == "" || req.Platform == "" {
				writeError(w, http.StatusBadRequest, "name and platform are required")
				return
			}
			now := time.Now()
			id, err := store.SaveCampaign(models.Campaign{
				Name:      req.Name,
				Platform:  req.Platform,
				Budget:    req.Budget,
				Status:    models.DraftCampaignStatus,
				ProjectID: req.ProjectID,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to create campaign: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to create campaign")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

type projectRequest struct {
	Name      string `json:"name"`
	Objective string `json:"objective,omitempty"`
}

func ProjectsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			projects, err := store.ListProjects()
			if err != nil {
				log.GetLogger().Errorf("Failed to list projects: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to list projects")
				return
			}
			writeJSON(w, http.StatusOK, projects)
		case http.MethodPost:
			var req projectRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, "name is required")
				return
			}
			now := time.Now()
			id, err := store.SaveProject(models.Project{
				Name:      req.Name,
				Objective: req.Objective,
				Status:    "active",
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to create project: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to create project")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// StreamHandler streams stage lifecycle events over SSE. Consumers may
// filter with execution_id and workflow_id query parameters.
func StreamHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		executionID := r.URL.Query().Get("execution_id")
		workflowID := r.URL.Query().Get("workflow_id")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		events, unsubscribe := eng.Subscribe()
		defer unsubscribe()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if executionID != "" && ev.ExecutionID != executionID {
					continue
				}
				if workflowID != "" && ev.WorkflowID != workflowID {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.GetLogger().Errorf("Failed to encode event: %v", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
				flusher.Flush()
			}
		}
	}
}
