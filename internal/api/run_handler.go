package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?flow=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		NotConfigured(w, "run history is not configured")
		return
	}

	filter := repo.RunFilter{
		Flow:   r.URL.Query().Get("flow"),
		JobID:  r.URL.Query().Get("job"),
		Limit:  int(mustParseInt(r.URL.Query().Get("limit"), 50)),
		Offset: int(mustParseInt(r.URL.Query().Get("offset"), 0)),
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.RunStatus(statusStr)
		if !status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		NotConfigured(w, "run history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunNodes возвращает узлы run.
// GET /api/v1/runs/{id}/nodes
func (h *Handler) ListRunNodes(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil || h.nodeRuns == nil {
		NotConfigured(w, "run history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "run not found") {
		return
	}

	nodes, err := h.nodeRuns.ListByRunID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]NodeRunResponse, len(nodes))
	for i, nr := range nodes {
		result[i] = NodeRunFromDomain(nr)
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}
