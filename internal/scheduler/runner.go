package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// ControllerFactory создаёт Controller для manifest расписания.
type ControllerFactory func(store *manifest.Store, manifestPath string) (*orchestrator.Controller, error)

// FlowRunner — Runner, выполняющий flow-файл расписания.
type FlowRunner struct {
	newController ControllerFactory
}

// NewFlowRunner создаёт FlowRunner.
func NewFlowRunner(factory ControllerFactory) *FlowRunner {
	return &FlowRunner{newController: factory}
}

// RunSchedule загружает flow и manifest и выполняет новый job.
func (r *FlowRunner) RunSchedule(ctx context.Context, s *domain.Schedule) (string, error) {
	flow, err := engine.LoadFlowFile(s.FlowFile)
	if err != nil {
		return "", err
	}

	store, err := manifest.ReadFile(s.Manifest)
	if err != nil {
		return "", err
	}

	c, err := r.newController(store, s.Manifest)
	if err != nil {
		return "", fmt.Errorf("create controller: %w", err)
	}

	res, err := c.Execute(ctx, flow, orchestrator.RunOptions{
		Steplist: s.Steplist,
		Relax:    s.Relax,
	})
	if err != nil {
		var fatal *orchestrator.RunFatalError
		if errors.As(err, &fatal) {
			return fatal.JobID, err
		}
		return "", err
	}
	return res.JobID, nil
}
