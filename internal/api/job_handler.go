package api

import (
	"net/http"
	"slices"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// ListJobs возвращает jobs из истории manifest.
// GET /api/v1/jobs?schedule=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadManifest(r.URL.Query().Get("schedule"))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	jobs := store.Jobs()
	result := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		status, _ := store.RunStatus(job)
		result[i] = JobFromStatuses(job, status, store.NodeStatuses(job))
	}

	List(w, result, len(result))
}

// GetJob возвращает job со сводкой по узлам.
// GET /api/v1/jobs/{job}?schedule=...
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadManifest(r.URL.Query().Get("schedule"))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	job := r.PathValue("job")
	if !slices.Contains(store.Jobs(), job) {
		NotFound(w, "job not found")
		return
	}

	status, _ := store.RunStatus(job)
	Success(w, JobDetailResponse{
		Job:    job,
		Status: string(status),
		Nodes:  orchestrator.BuildSummary(nil, store, store.NodeStatuses(job)),
	})
}

// GetNodeResult возвращает путь к артефакту узла.
// GET /api/v1/jobs/{job}/nodes/{step}/{index}/result?kind=...&schedule=...
func (h *Handler) GetNodeResult(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		BadRequest(w, "kind is required")
		return
	}

	store, err := h.loadManifest(r.URL.Query().Get("schedule"))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	job := r.PathValue("job")
	id := domain.NodeID{Step: r.PathValue("step"), Index: r.PathValue("index")}

	status, ok := store.NodeStatus(job, id)
	if !ok {
		NotFound(w, "node not found in job")
		return
	}

	path, ok := orchestrator.LookupResult(store, status, id, kind)
	if !ok {
		NotFound(w, "result not found")
		return
	}

	Success(w, ResultResponse{
		Job:  job,
		Node: id.String(),
		Kind: kind,
		Path: path,
	})
}
