package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/pdflow/internal/aggregate"
	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/tools"
)

// jobExecutor — NodeExecutor одного job.
type jobExecutor struct {
	c        *Controller
	ctx      context.Context
	job      string
	store    *manifest.Store
	state    *RunState
	configs  map[domain.NodeID]*tools.NodeConfig
	adapters map[domain.NodeID]tools.Adapter
	relax    bool
	logger   *slog.Logger
}

// Threads возвращает число потоков из настроек инструмента.
func (e *jobExecutor) Threads(node *engine.Node) int {
	if cfg, ok := e.configs[node.ID]; ok {
		return cfg.Threads()
	}
	return 1
}

// RunTool выполняет протокол адаптера вокруг запуска инструмента:
// pre_process → запрос версии → запуск → post_process → проверка артефактов.
func (e *jobExecutor) RunTool(ctx context.Context, node *engine.Node) error {
	cfg := e.configs[node.ID]
	adapter := e.adapters[node.ID]
	if cfg == nil || adapter == nil {
		return &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: tools.StageSetup,
			Err: fmt.Errorf("%w: %s", engine.ErrUnknownTool, node.Def.Tool)}
	}

	nodeErr := func(stage string, err error) error {
		return &NodeError{Node: node.ID, Tool: cfg.Tool, Stage: stage, Err: err}
	}

	e.store.ClearNode(node.ID)

	if err := adapter.PreProcess(cfg); err != nil {
		return nodeErr(tools.StagePreProcess, err)
	}

	e.probeVersion(ctx, cfg, adapter)

	inv := cfg.Invocation()
	cfg.Logger.Info("running tool",
		"exe", inv.Exe,
		"threads", inv.Threads,
		"log", inv.LogPath,
	)

	code, err := e.c.launcher.Launch(ctx, inv)
	if err != nil {
		return nodeErr(tools.StageRun, err)
	}
	if code != 0 {
		return nodeErr(tools.StageRun, fmt.Errorf("%w: %d (see %s)", ErrToolExit, code, inv.LogPath))
	}

	post, err := adapter.PostProcess(cfg)
	if err != nil {
		return nodeErr(tools.StagePostProcess, err)
	}
	if post != 0 {
		return nodeErr(tools.StagePostProcess, fmt.Errorf("%w: code %d", ErrPostProcess, post))
	}

	if err := cfg.CheckWarnings(e.relax); err != nil {
		return nodeErr(tools.StagePostProcess, err)
	}

	return e.recordOutputs(cfg)
}

// probeVersion запрашивает версию инструмента, если задан ключ версии.
// Неудачный запрос — предупреждение, а не ошибка узла.
func (e *jobExecutor) probeVersion(ctx context.Context, cfg *tools.NodeConfig, adapter tools.Adapter) {
	vswitch := cfg.VersionSwitch()
	if e.c.prober == nil || len(vswitch) == 0 {
		return
	}

	raw, err := e.c.prober.Probe(ctx, cfg.Exe(), vswitch)
	if err != nil {
		cfg.Warnf("version probe failed: %v", err)
		return
	}

	var version string
	if vp, ok := adapter.(tools.VersionParser); ok {
		version = vp.ParseVersionFor(cfg, raw)
	} else {
		version = adapter.ParseVersion(raw)
	}
	if err := cfg.SetVersion(version); err != nil {
		cfg.Warnf("record version: %v", err)
		return
	}
	cfg.Logger.Debug("tool version", "version", version)
}

// recordOutputs проверяет объявленные артефакты и записывает их пути.
func (e *jobExecutor) recordOutputs(cfg *tools.NodeConfig) error {
	for _, name := range cfg.DeclaredOutputs() {
		path := cfg.OutputPath(name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrMissingOutput, path)
			}
			return &NodeError{Node: cfg.Node, Tool: cfg.Tool, Stage: StageOutputs, Err: err}
		}
		if err := e.store.SetOutput(cfg.Node, name, path); err != nil {
			return &NodeError{Node: cfg.Node, Tool: cfg.Tool, Stage: StageOutputs, Err: err}
		}
	}

	if _, err := os.Stat(cfg.LogPath()); err == nil {
		if err := e.store.SetOutput(cfg.Node, cfg.Node.Step+".log", cfg.LogPath()); err != nil {
			return &NodeError{Node: cfg.Node, Tool: cfg.Tool, Stage: StageOutputs, Err: err}
		}
	}
	return nil
}

// Aggregate вычисляет join/minimum по результатам входов в manifest.
func (e *jobExecutor) Aggregate(node *engine.Node) (*domain.NodeID, error) {
	inputs := make([]aggregate.Input, 0, len(node.Inputs))
	for _, in := range node.Inputs {
		st, _ := e.state.Status(in.ID)
		inputs = append(inputs, aggregate.Input{
			ID:      in.ID,
			Status:  st,
			Outputs: e.store.Outputs(in.ID),
			Metrics: e.store.Metrics(in.ID),
		})
	}

	e.store.ClearNode(node.ID)

	res := aggregate.Evaluate(node.Kind(), inputs, node.Def.Weights)
	if res.Status != domain.NodeStatusSuccess {
		return nil, &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: StageAggregate,
			Err: fmt.Errorf("%w: %s", ErrAggregate, res.Reason)}
	}

	for name, path := range res.Outputs {
		if err := e.store.SetOutput(node.ID, name, path); err != nil {
			return nil, &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: StageAggregate, Err: err}
		}
	}
	for name, v := range res.Metrics {
		if err := e.store.SetMetric(node.ID, name, v); err != nil {
			return nil, &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: StageAggregate, Err: err}
		}
	}
	if res.Selected != nil {
		if err := e.store.SetSelected(node.ID, *res.Selected); err != nil {
			return nil, &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: StageAggregate, Err: err}
		}
		e.logger.Info("minimum selected input",
			"node", node.ID.String(),
			"selected", res.Selected.String(),
			"score", res.Scores[*res.Selected],
		)
	}

	return res.Selected, nil
}

// Discard удаляет результаты узла из прошлых job.
func (e *jobExecutor) Discard(node *engine.Node) {
	e.store.ClearNode(node.ID)
}

// Transition записывает статус в историю и уведомляет наблюдателей.
func (e *jobExecutor) Transition(nr *domain.NodeRun) {
	e.c.recordNode(e.ctx, e.job, nr)
}

var _ NodeExecutor = (*jobExecutor)(nil)
