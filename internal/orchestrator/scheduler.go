package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
)

// NodeExecutor выполняет узлы по указанию Scheduler.
//
// RunTool вызывается в отдельной горутине; остальные методы — только
// из горутины координатора.
type NodeExecutor interface {
	// Threads возвращает число потоков, которое займёт узел.
	Threads(node *engine.Node) int

	// RunTool выполняет инструмент узла. nil — SUCCESS.
	RunTool(ctx context.Context, node *engine.Node) error

	// Aggregate вычисляет join/minimum и записывает результат узла.
	// Возвращает выбранный вход (для minimum) или ошибку — ERROR.
	Aggregate(node *engine.Node) (*domain.NodeID, error)

	// Discard удаляет результаты узла, не выполненного из-за входов.
	Discard(node *engine.Node)

	// Transition сохраняет смену статуса узла.
	Transition(nr *domain.NodeRun)
}

// SchedulerConfig — конфигурация Scheduler.
type SchedulerConfig struct {
	// MaxParallel — максимум одновременно выполняющихся инструментов
	// (default: runtime.NumCPU()).
	MaxParallel int

	// ThreadBudget — суммарный бюджет потоков (default: runtime.NumCPU()).
	ThreadBudget int

	// Logger — логгер job (уже с атрибутом job, см. telemetry.WithJobID).
	Logger *slog.Logger
}

// Scheduler — координатор выполнения узлов одного job.
type Scheduler struct {
	maxParallel  int
	threadBudget int
	logger       *slog.Logger
}

// toolResult — результат выполнения инструмента в пуле.
type toolResult struct {
	node   *engine.Node
	weight int64
	err    error
}

// NewScheduler создаёт Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = runtime.NumCPU()
	}
	if cfg.ThreadBudget <= 0 {
		cfg.ThreadBudget = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		maxParallel:  cfg.MaxParallel,
		threadBudget: cfg.ThreadBudget,
		logger:       cfg.Logger,
	}
}

// Run выполняет узлы job до тех пор, пока есть что запускать.
//
// Готовые join/minimum вычисляются сразу, узлы с упавшим входом
// получают ERROR без запуска, остальные инструменты запускаются в пуле.
// Как только успех обязательного узла становится невозможен, новые
// инструменты не запускаются (остаются PENDING), а уже запущенные
// дорабатывают. Возвращает ошибку только при отмене ctx.
func (s *Scheduler) Run(ctx context.Context, state *RunState, exec NodeExecutor) error {
	threads := semaphore.NewWeighted(int64(s.threadBudget))
	results := make(chan toolResult)
	inFlight := 0
	halted := false

	for {
		for progressed := true; progressed; {
			progressed = false

			if !halted && state.RequiredDoomed() {
				halted = true
				s.logger.Warn("required node cannot succeed, no new tools will be launched")
			}

			for _, node := range state.ReadyNodes() {
				switch {
				case node.Kind().IsAggregator():
					s.aggregate(state, exec, node)
					progressed = true

				case s.shortCircuit(state, exec, node):
					progressed = true

				case halted || ctx.Err() != nil || inFlight >= s.maxParallel:
					continue

				default:
					weight := int64(min(max(exec.Threads(node), 1), s.threadBudget))
					if !threads.TryAcquire(weight) {
						continue
					}
					exec.Transition(state.MarkRunning(node.ID, int(weight)))
					inFlight++
					progressed = true

					go func(node *engine.Node, weight int64) {
						err := exec.RunTool(ctx, node)
						results <- toolResult{node: node, weight: weight, err: err}
					}(node, weight)
				}
			}
		}

		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--
		threads.Release(res.weight)

		if res.err != nil {
			s.logger.Error("node failed",
				"node", res.node.ID.String(),
				"error", res.err,
			)
			exec.Transition(state.MarkFailed(res.node.ID, res.err.Error()))
		} else {
			exec.Transition(state.MarkSucceeded(res.node.ID, nil))
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("job %s interrupted: %w", state.Run.JobID, err)
	}
	return nil
}

// aggregate вычисляет join/minimum узел.
func (s *Scheduler) aggregate(state *RunState, exec NodeExecutor, node *engine.Node) {
	selected, err := exec.Aggregate(node)
	if err != nil {
		s.logger.Warn("aggregation failed",
			"node", node.ID.String(),
			"error", err,
		)
		exec.Transition(state.MarkFailed(node.ID, err.Error()))
		return
	}
	exec.Transition(state.MarkSucceeded(node.ID, selected))
}

// shortCircuit переводит инструмент в ERROR, если упал один из входов.
func (s *Scheduler) shortCircuit(state *RunState, exec NodeExecutor, node *engine.Node) bool {
	failed, ok := state.FailedInput(node)
	if !ok {
		return false
	}

	err := &NodeError{
		Node:  node.ID,
		Tool:  node.Def.Tool,
		Stage: StageShortCircuit,
		Err:   fmt.Errorf("%w: %s", ErrInputFailed, failed),
	}
	s.logger.Info("skipping node with failed input",
		"node", node.ID.String(),
		"input", failed.String(),
	)
	exec.Discard(node)
	exec.Transition(state.MarkFailed(node.ID, err.Error()))
	return true
}
