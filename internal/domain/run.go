package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одно выполнение flow (job).
//
// Run создаётся когда:
// - Пользователь запускает flow через CLI
// - Scheduler запускает регрессию по расписанию
//
// JobID ("job0", "job1", ...) — ключ истории в manifest,
// ID — глобальный идентификатор для БД и событий.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// JobID — имя job в истории manifest.
	JobID string `json:"job_id"`

	// Flow — имя выполняемого flow.
	Flow string `json:"flow"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Steplist — ограничение на выполняемые шаги (пусто — все шаги).
	Steplist []string `json:"steplist,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(jobID, flow string, steplist []string) *Run {
	return &Run{
		ID:        uuid.New(),
		JobID:     jobID,
		Flow:      flow,
		Status:    RunStatusPending,
		Steplist:  steplist,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// NodeRun — выполнение одного узла внутри job.
type NodeRun struct {
	// RunID — run, к которому относится узел.
	RunID uuid.UUID `json:"run_id"`

	// JobID — job, к которому относится узел.
	JobID string `json:"job_id"`

	// Node — идентификатор узла.
	Node NodeID `json:"node"`

	// Tool — имя инструмента ("join"/"minimum" для агрегаторов).
	Tool string `json:"tool"`

	// Status — статус узла.
	Status NodeStatus `json:"status"`

	// Threads — число потоков, выделенных узлу.
	Threads int `json:"threads,omitempty"`

	// Selected — выбранный вход (только для minimum).
	Selected *NodeID `json:"selected,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения.
func (n *NodeRun) Duration() time.Duration {
	if n.StartedAt == nil || n.FinishedAt == nil {
		return 0
	}
	return n.FinishedAt.Sub(*n.StartedAt)
}

// MarkRunning переводит узел в статус RUNNING.
func (n *NodeRun) MarkRunning() {
	now := time.Now()
	n.Status = NodeStatusRunning
	n.StartedAt = &now
}

// MarkSucceeded переводит узел в статус SUCCESS.
func (n *NodeRun) MarkSucceeded() {
	now := time.Now()
	n.Status = NodeStatusSuccess
	n.FinishedAt = &now
	if n.StartedAt == nil {
		n.StartedAt = &now
	}
}

// MarkFailed переводит узел в статус ERROR с ошибкой.
func (n *NodeRun) MarkFailed(err string) {
	now := time.Now()
	n.Status = NodeStatusError
	n.FinishedAt = &now
	n.Error = err
	if n.StartedAt == nil {
		n.StartedAt = &now
	}
}
