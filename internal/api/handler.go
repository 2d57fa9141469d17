// Package api exposes the operator HTTP API: job submission and inspection,
// tool management, alert history, and rule administration.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/monitor"
	"github.com/stackspy/stackspy/internal/storage"
	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
)

// JobScheduler is the scheduler surface the API depends on
type JobScheduler interface {
	EnqueueAnalysis(ctx context.Context, toolIDs []string, priority types.Priority, jobType types.JobType) (*types.BatchJob, error)
	TriggerImmediate(ctx context.Context, toolID string) (*types.BatchJob, error)
	JobStatus(ctx context.Context, id string) (*types.BatchJob, error)
	Stats() monitor.Stats
	PauseTool(ctx context.Context, toolID string) error
	ResumeTool(ctx context.Context, toolID string) error
}

// RuleRegistry is the alert engine surface the API depends on
type RuleRegistry interface {
	AddRule(rule *alerts.AlertRule) error
	Rules() []*alerts.AlertRule
}

// Handler holds the API dependencies
type Handler struct {
	scheduler JobScheduler
	store     storage.Storage
	rules     RuleRegistry
	log       *zap.SugaredLogger
}

// NewHandler creates an API handler
func NewHandler(scheduler JobScheduler, store storage.Storage, rules RuleRegistry, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{scheduler: scheduler, store: store, rules: rules, log: log}
}

type apiError struct {
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Message: msg})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobDTO struct {
	ToolIDs  []string `json:"tool_ids"`
	Priority string   `json:"priority,omitempty"`
	JobType  string   `json:"job_type,omitempty"`
}

// CreateJob enqueues a manual analysis job
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(dto.ToolIDs) == 0 {
		writeError(w, http.StatusBadRequest, "tool_ids is required")
		return
	}

	priority := types.PriorityNormal
	if dto.Priority != "" {
		priority = types.Priority(dto.Priority)
	}
	jobType := types.JobManual
	if dto.JobType != "" {
		jobType = types.JobType(dto.JobType)
	}

	job, err := h.scheduler.EnqueueAnalysis(r.Context(), dto.ToolIDs, priority, jobType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GetJob returns a job's current state
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.scheduler.JobStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns recently created jobs from history
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	jobs, err := h.store.ListRecentJobs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*types.BatchJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetStats returns scheduler counters and queue depths
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Stats())
}

type createToolDTO struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// CreateTool registers a new tool for monitoring
func (h *Handler) CreateTool(w http.ResponseWriter, r *http.Request) {
	var dto createToolDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	priority := types.PriorityNormal
	if dto.Priority != "" {
		priority = types.Priority(dto.Priority)
	}
	now := time.Now()
	tool := &types.Tool{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(dto.Name),
		URL:       strings.TrimSpace(dto.URL),
		Category:  dto.Category,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tool.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateTool(r.Context(), tool); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tool)
}

// ListTools returns all tracked tools
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.store.ListTools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tools == nil {
		tools = []*types.Tool{}
	}
	writeJSON(w, http.StatusOK, tools)
}

// PauseTool suspends monitoring for a tool
func (h *Handler) PauseTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.scheduler.PauseTool(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tool_id": id, "state": "paused"})
}

// ResumeTool reinstates monitoring for a tool
func (h *Handler) ResumeTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.scheduler.ResumeTool(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tool_id": id, "state": "active"})
}

// AnalyzeTool queues an immediate urgent analysis of one tool
func (h *Handler) AnalyzeTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.scheduler.TriggerImmediate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// ListAlerts returns alert history filtered by query parameters
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := storage.AlertFilter{
		ToolID:         r.URL.Query().Get("tool_id"),
		Severity:       alerts.Severity(r.URL.Query().Get("severity")),
		Unacknowledged: r.URL.Query().Get("unacknowledged") == "true",
		Limit:          parseLimit(r, 100),
	}
	if filter.Severity != "" && !filter.Severity.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid severity")
		return
	}

	list, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

type ackDTO struct {
	User string `json:"user"`
}

// AcknowledgeAlert marks an alert as handled
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto ackDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(dto.User) == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	if err := h.store.AcknowledgeAlert(r.Context(), id, dto.User); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ListRules returns the active rule set
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.rules.Rules()
	if rules == nil {
		rules = []*alerts.AlertRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

type createRuleDTO struct {
	Name              string             `json:"name"`
	ChangeTypes       []types.ChangeType `json:"change_types"`
	SeverityThreshold alerts.Severity    `json:"severity_threshold"`
	ToolPriorities    []types.Priority   `json:"tool_priorities,omitempty"`
	Cooldown          string             `json:"cooldown,omitempty"`
	Channels          []alerts.Channel   `json:"channels"`
	Active            *bool              `json:"active,omitempty"`
}

// CreateRule registers a new alert rule and persists it
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var dto createRuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rule := alerts.AlertRule{
		Name:              dto.Name,
		ChangeTypes:       dto.ChangeTypes,
		SeverityThreshold: dto.SeverityThreshold,
		ToolPriorities:    dto.ToolPriorities,
		Channels:          dto.Channels,
		Active:            true,
	}
	if dto.Active != nil {
		rule.Active = *dto.Active
	}
	if dto.Cooldown != "" {
		cooldown, err := time.ParseDuration(dto.Cooldown)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cooldown duration")
			return
		}
		rule.Cooldown = cooldown
	}

	if err := h.rules.AddRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.SaveRule(r.Context(), &rule); err != nil {
		h.log.Warnw("failed to persist rule", "rule", rule.Name, "error", err)
	}
	writeJSON(w, http.StatusCreated, &rule)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
