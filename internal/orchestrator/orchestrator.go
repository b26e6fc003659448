package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/launch"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/telemetry"
	"github.com/shaiso/pdflow/internal/tools"
)

// Default configuration values.
const (
	defaultWorkDir = "build"
)

// Recorder сохраняет историю выполнения во внешнее хранилище.
//
// Ошибки Recorder логируются и не влияют на результат job.
type Recorder interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	SaveNodeRun(ctx context.Context, nr *domain.NodeRun) error
}

// EventSink получает уведомления о завершении узлов и job.
type EventSink interface {
	NodeCompleted(ctx context.Context, job string, nr *domain.NodeRun) error
	RunCompleted(ctx context.Context, run *domain.Run) error
}

// Controller выполняет flow в рамках одного manifest.
//
// Controller:
//   - Проверяет flow и строит план по steplist
//   - Настраивает адаптеры выполняемых узлов
//   - Запускает Scheduler
//   - Записывает статусы в history/<job> и во внешние хранилища
//   - Возвращает RunResult или RunFatalError
//
// Execute сериализуется: узлы разных job делят ключи результатов в manifest.
type Controller struct {
	store    *manifest.Store
	registry *tools.Registry
	launcher launch.Launcher
	prober   launch.VersionProber

	workDir      string
	manifestPath string
	maxParallel  int
	threadBudget int

	recorder Recorder
	events   EventSink
	metrics  *telemetry.Metrics

	logger *slog.Logger
	execMu sync.Mutex
}

// Config — конфигурация Controller.
type Config struct {
	// Store — manifest (обязателен).
	Store *manifest.Store

	// Registry — адаптеры инструментов (обязателен).
	Registry *tools.Registry

	// Launcher — запуск процессов инструментов (обязателен).
	Launcher launch.Launcher

	// Prober — запрос версии инструмента (опционально).
	Prober launch.VersionProber

	// WorkDir — корень рабочих директорий узлов (default: "build").
	WorkDir string

	// ManifestPath — файл, в который manifest сохраняется после каждого
	// завершённого узла (опционально).
	ManifestPath string

	// MaxParallel — максимум одновременно запущенных инструментов
	// (default: runtime.NumCPU()).
	MaxParallel int

	// ThreadBudget — суммарный бюджет потоков (default: runtime.NumCPU()).
	ThreadBudget int

	// Recorder — внешняя история (опционально).
	Recorder Recorder

	// Events — уведомления о завершении (опционально).
	Events EventSink

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// RunOptions — параметры одного job.
type RunOptions struct {
	// JobID — имя job; пусто — следующее свободное jobN.
	JobID string

	// Steplist — шаги для выполнения; пусто — весь flow.
	Steplist []string

	// Require — узлы, успех которых обязателен помимо терминальных.
	Require []domain.NodeID

	// Relax — предупреждения адаптеров не переводят узел в ERROR.
	Relax bool
}

// New создаёт новый Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("manifest store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Launcher == nil {
		return nil, errors.New("launcher is required")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = defaultWorkDir
	}

	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}

	threadBudget := cfg.ThreadBudget
	if threadBudget <= 0 {
		threadBudget = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		store:        cfg.Store,
		registry:     cfg.Registry,
		launcher:     cfg.Launcher,
		prober:       cfg.Prober,
		workDir:      workDir,
		manifestPath: cfg.ManifestPath,
		maxParallel:  maxParallel,
		threadBudget: threadBudget,
		recorder:     cfg.Recorder,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       logger,
	}, nil
}

// Store возвращает manifest контроллера.
func (c *Controller) Store() *manifest.Store {
	return c.store
}

// Execute выполняет flow.
//
// Ошибки:
//   - *engine.ConfigError — flow или настройки инструментов некорректны,
//     ни один узел не запускался
//   - *RunFatalError — обязательный узел не достиг SUCCESS
//
// Ошибки отдельных узлов не возвращаются: они записаны в истории job.
func (c *Controller) Execute(ctx context.Context, flow *domain.FlowSpec, opts RunOptions) (*RunResult, error) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	if err := engine.Validate(flow); err != nil {
		return nil, err
	}
	g, err := engine.BuildGraph(flow)
	if err != nil {
		return nil, err
	}

	plan, err := engine.BuildPlan(g, engine.PlanOptions{
		Steplist: opts.Steplist,
		Require:  opts.Require,
	}, c.store)
	if err != nil {
		return nil, err
	}

	job := opts.JobID
	if job == "" {
		job = c.store.NextJobID()
	}
	logger := telemetry.WithJobID(c.logger, job)

	configs, adapters, err := c.setupTools(job, plan, logger)
	if err != nil {
		return nil, err
	}

	run := domain.NewRun(job, flow.Name, opts.Steplist)
	run.MarkRunning()
	state := NewRunState(run, plan)

	if err := c.startJob(ctx, run, plan); err != nil {
		return nil, err
	}

	logger.Info("job started",
		"flow", flow.Name,
		"nodes", plan.Size(),
		"steplist", opts.Steplist,
		"relax", opts.Relax,
	)

	exec := &jobExecutor{
		c:        c,
		ctx:      ctx,
		job:      job,
		store:    c.store,
		state:    state,
		configs:  configs,
		adapters: adapters,
		relax:    opts.Relax,
		logger:   logger,
	}

	sched := NewScheduler(SchedulerConfig{
		MaxParallel:  c.maxParallel,
		ThreadBudget: c.threadBudget,
		Logger:       logger,
	})
	runErr := sched.Run(ctx, state, exec)

	result := &RunResult{
		JobID: job,
		Flow:  flow.Name,
		Run:   run,
		graph: g,
		store: c.store,
		state: state,
	}

	failed := state.UnsuccessfulRequired()
	if runErr != nil || len(failed) > 0 {
		fatal := &RunFatalError{
			JobID:    job,
			Failed:   failed,
			Statuses: state.Statuses(),
			Summary:  result.Summary(),
			Err:      runErr,
		}
		run.MarkFailed(fatal.Error())
		c.finishJob(ctx, run)

		logger.Error("job failed",
			"failed", len(failed),
			"duration", run.Duration(),
			"error", runErr,
		)
		return nil, fatal
	}

	run.MarkSucceeded()
	c.finishJob(ctx, run)

	stats := state.Stats()
	logger.Info("job succeeded",
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"duration", run.Duration(),
	)

	return result, nil
}

// setupTools находит адаптеры выполняемых инструментов и вызывает Setup.
func (c *Controller) setupTools(job string, plan *engine.Plan, logger *slog.Logger) (map[domain.NodeID]*tools.NodeConfig, map[domain.NodeID]tools.Adapter, error) {
	configs := make(map[domain.NodeID]*tools.NodeConfig)
	adapters := make(map[domain.NodeID]tools.Adapter)

	for _, node := range plan.Order {
		if node.Kind().IsAggregator() {
			continue
		}

		adapter, err := c.registry.Get(node.Def.Tool)
		if err != nil {
			return nil, nil, engine.NewConfigError(node.ID.String(), "tool",
				fmt.Sprintf("no adapter for tool %q", node.Def.Tool),
				fmt.Errorf("%w: %w", engine.ErrUnknownTool, err))
		}

		threads := engine.Threads(plan.Graph, node.ID, c.threadBudget)
		cfg := tools.NewNodeConfig(c.store, job, node.Def, c.workDir, threads)
		cfg.Logger = telemetry.WithNode(logger, node.ID.String(), node.Def.Tool)

		if err := adapter.Setup(cfg); err != nil {
			return nil, nil, engine.NewConfigError(node.ID.String(), "tool",
				fmt.Sprintf("setup of %s failed", node.Def.Tool),
				fmt.Errorf("%w: %w", engine.ErrToolSetup, err))
		}

		configs[node.ID] = cfg
		adapters[node.ID] = adapter
	}
	return configs, adapters, nil
}

// startJob записывает job и PENDING статусы выполняемых узлов.
func (c *Controller) startJob(ctx context.Context, run *domain.Run, plan *engine.Plan) error {
	if err := c.store.AddJob(run.JobID); err != nil {
		return fmt.Errorf("record job %s: %w", run.JobID, err)
	}
	if err := c.store.SetRunStatus(run.JobID, run.Status); err != nil {
		return fmt.Errorf("record job %s: %w", run.JobID, err)
	}
	for _, node := range plan.Order {
		if err := c.store.SetNodeStatus(run.JobID, node.ID, domain.NodeStatusPending); err != nil {
			return fmt.Errorf("record job %s: %w", run.JobID, err)
		}
	}
	c.saveManifest()

	if c.recorder != nil {
		if err := c.recorder.SaveRun(ctx, run); err != nil {
			c.logger.Warn("failed to record run", "job", run.JobID, "error", err)
		}
	}
	return nil
}

// finishJob записывает итоговый статус job.
func (c *Controller) finishJob(ctx context.Context, run *domain.Run) {
	// Итог нужно записать и после отмены ctx.
	ctx = context.WithoutCancel(ctx)

	if err := c.store.SetRunStatus(run.JobID, run.Status); err != nil {
		c.logger.Error("failed to record job status", "job", run.JobID, "error", err)
	}
	c.saveManifest()

	if c.recorder != nil {
		if err := c.recorder.UpdateRun(ctx, run); err != nil {
			c.logger.Warn("failed to update run", "job", run.JobID, "error", err)
		}
	}
	if c.events != nil {
		if err := c.events.RunCompleted(ctx, run); err != nil {
			c.logger.Warn("failed to publish run event", "job", run.JobID, "error", err)
		}
	}
	c.metrics.RunFinished(run.Flow, string(run.Status))
}

// recordNode записывает смену статуса узла.
func (c *Controller) recordNode(ctx context.Context, job string, nr *domain.NodeRun) {
	ctx = context.WithoutCancel(ctx)

	if err := c.store.SetNodeStatus(job, nr.Node, nr.Status); err != nil {
		c.logger.Error("failed to record node status",
			"job", job,
			"node", nr.Node.String(),
			"error", err,
		)
	}

	if c.recorder != nil {
		if err := c.recorder.SaveNodeRun(ctx, nr); err != nil {
			c.logger.Warn("failed to record node run", "job", job, "node", nr.Node.String(), "error", err)
		}
	}

	if nr.Status == domain.NodeStatusRunning {
		c.metrics.NodeStarted()
		return
	}
	if !nr.Status.IsTerminal() {
		return
	}

	c.saveManifest()

	if c.events != nil {
		if err := c.events.NodeCompleted(ctx, job, nr); err != nil {
			c.logger.Warn("failed to publish node event", "job", job, "node", nr.Node.String(), "error", err)
		}
	}
	kind := domain.KindOf(nr.Tool)
	c.metrics.NodeFinished(nr.Tool, kind.String(), string(nr.Status), nr.Threads > 0, nr.Duration())
}

// saveManifest сохраняет manifest в файл, если он задан.
func (c *Controller) saveManifest() {
	if c.manifestPath == "" {
		return
	}
	if err := c.store.WriteFile(c.manifestPath); err != nil {
		c.logger.Error("failed to write manifest", "path", c.manifestPath, "error", err)
	}
}
