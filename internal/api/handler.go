package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/repo"
	"github.com/shaiso/pdflow/internal/telemetry"
)

// RunSource — чтение истории runs (repo.RunRepo).
type RunSource interface {
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// NodeRunSource — чтение истории узлов (repo.NodeRunRepo).
type NodeRunSource interface {
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.NodeRun, error)
}

// ScheduleSource — расписания (scheduler.MemoryStore или repo.ScheduleRepo).
type ScheduleSource interface {
	List(ctx context.Context) ([]domain.Schedule, error)
	GetByName(ctx context.Context, name string) (*domain.Schedule, error)
}

// Handler — главный обработчик API с зависимостями.
//
// API только читает: manifest перечитывается с диска на каждый запрос,
// поэтому ответы отражают состояние запущенного в этот момент job.
type Handler struct {
	manifest  string
	manifests map[string]string
	runs      RunSource
	nodeRuns  NodeRunSource
	schedules ScheduleSource
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Manifest — путь к manifest по умолчанию.
	Manifest string

	// Manifests — manifest расписаний по имени расписания
	// (выбирается параметром ?schedule=).
	Manifests map[string]string

	// Runs, NodeRuns — история в Postgres (опционально).
	Runs     RunSource
	NodeRuns NodeRunSource

	// Schedules — расписания (опционально).
	Schedules ScheduleSource

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		manifest:  cfg.Manifest,
		manifests: cfg.Manifests,
		runs:      cfg.Runs,
		nodeRuns:  cfg.NodeRuns,
		schedules: cfg.Schedules,
		logger:    cfg.Logger,
	}
}

// log возвращает логгер запроса (с request_id), выставленный RequestID.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContext(r.Context())
}

// loadManifest читает manifest по имени расписания или manifest по умолчанию.
func (h *Handler) loadManifest(schedule string) (*manifest.Store, error) {
	path := h.manifest
	if schedule != "" {
		p, ok := h.manifests[schedule]
		if !ok {
			return nil, errUnknownSchedule
		}
		path = p
	}
	if path == "" {
		return nil, errNoManifest
	}
	return manifest.ReadFile(path)
}
