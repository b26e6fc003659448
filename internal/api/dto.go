package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// Job DTOs

// JobResponse — краткие сведения о job из manifest.
type JobResponse struct {
	Job    string         `json:"job"`
	Status string         `json:"status,omitempty"`
	Nodes  int            `json:"nodes"`
	Counts map[string]int `json:"counts"`
}

// JobDetailResponse — job со сводкой по узлам.
type JobDetailResponse struct {
	Job    string                    `json:"job"`
	Status string                    `json:"status,omitempty"`
	Nodes  []orchestrator.SummaryRow `json:"nodes"`
}

// ResultResponse — путь к артефакту узла.
type ResultResponse struct {
	Job  string `json:"job"`
	Node string `json:"node"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// JobFromStatuses строит JobResponse по статусам узлов job.
func JobFromStatuses(job string, status domain.RunStatus, statuses map[domain.NodeID]domain.NodeStatus) JobResponse {
	counts := make(map[string]int)
	for _, st := range statuses {
		counts[string(st)]++
	}
	return JobResponse{
		Job:    job,
		Status: string(status),
		Nodes:  len(statuses),
		Counts: counts,
	}
}

// Run DTOs

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID  `json:"id"`
	JobID      string     `json:"job_id"`
	Flow       string     `json:"flow"`
	Status     string     `json:"status"`
	Steplist   []string   `json:"steplist,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		JobID:      r.JobID,
		Flow:       r.Flow,
		Status:     string(r.Status),
		Steplist:   r.Steplist,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
	}
}

// NodeRunResponse — ответ с выполнением узла.
type NodeRunResponse struct {
	Node       string     `json:"node"`
	Tool       string     `json:"tool"`
	Status     string     `json:"status"`
	Threads    int        `json:"threads,omitempty"`
	Selected   string     `json:"selected,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NodeRunFromDomain конвертирует domain.NodeRun в NodeRunResponse.
func NodeRunFromDomain(nr domain.NodeRun) NodeRunResponse {
	resp := NodeRunResponse{
		Node:       nr.Node.String(),
		Tool:       nr.Tool,
		Status:     string(nr.Status),
		Threads:    nr.Threads,
		StartedAt:  nr.StartedAt,
		FinishedAt: nr.FinishedAt,
		Error:      nr.Error,
	}
	if nr.Selected != nil {
		resp.Selected = nr.Selected.String()
	}
	return resp
}

// Schedule DTOs

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	Name        string     `json:"name"`
	FlowFile    string     `json:"flow_file"`
	Manifest    string     `json:"manifest"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	Steplist    []string   `json:"steplist,omitempty"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastJobID   string     `json:"last_job_id,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		Name:        s.Name,
		FlowFile:    s.FlowFile,
		Manifest:    s.Manifest,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Steplist:    s.Steplist,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastJobID:   s.LastJobID,
	}
}
