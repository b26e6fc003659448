package engine

import (
	"fmt"

	"github.com/shaiso/pdflow/internal/domain"
)

// PriorLookup — источник финальных статусов узлов из истории job.
type PriorLookup interface {
	PriorStatus(id domain.NodeID) (domain.NodeStatus, bool)
}

// PlanOptions — параметры планирования job.
type PlanOptions struct {
	// Steplist — шаги для выполнения; пусто — все шаги.
	Steplist []string

	// Require — дополнительные узлы, успех которых обязателен.
	Require []domain.NodeID
}

// Plan — набор узлов, выполняемых в одном job.
type Plan struct {
	// Graph — граф flow.
	Graph *Graph

	// Order — выполняемые узлы в топологическом порядке.
	Order []*Node

	// Scheduled — выполняемые узлы.
	Scheduled map[domain.NodeID]bool

	// Prior — финальные статусы невыполняемых входов из прошлых job.
	Prior map[domain.NodeID]domain.NodeStatus

	// Required — узлы, успех которых определяет успех job:
	// выполняемые узлы без выполняемых потребителей плюс Require.
	Required []domain.NodeID
}

// BuildPlan выбирает выполняемые узлы и проверяет, что каждый их вход
// либо выполняется в этом job, либо уже имеет финальный статус.
func BuildPlan(g *Graph, opts PlanOptions, priors PriorLookup) (*Plan, error) {
	p := &Plan{
		Graph:     g,
		Order:     make([]*Node, 0, len(g.Order)),
		Scheduled: make(map[domain.NodeID]bool),
		Prior:     make(map[domain.NodeID]domain.NodeStatus),
	}

	steps := make(map[string]bool, len(opts.Steplist))
	known := make(map[string]bool)
	for _, step := range g.Steps() {
		known[step] = true
	}
	for _, step := range opts.Steplist {
		if !known[step] {
			return nil, NewConfigError("", "steplist",
				fmt.Sprintf("steplist names unknown step: %s", step), ErrUnknownStep)
		}
		steps[step] = true
	}

	for _, node := range g.Order {
		if len(steps) == 0 || steps[node.ID.Step] {
			p.Scheduled[node.ID] = true
			p.Order = append(p.Order, node)
		}
	}

	for _, node := range p.Order {
		for _, in := range node.Inputs {
			if p.Scheduled[in.ID] {
				continue
			}
			if _, seen := p.Prior[in.ID]; seen {
				continue
			}
			var (
				st domain.NodeStatus
				ok bool
			)
			if priors != nil {
				st, ok = priors.PriorStatus(in.ID)
			}
			if !ok {
				return nil, NewConfigError(node.ID.String(), "inputs",
					fmt.Sprintf("input %s is not scheduled and has no earlier result", in.ID),
					ErrUnsatisfiedInput)
			}
			p.Prior[in.ID] = st
		}
	}

	required := make(map[domain.NodeID]bool)
	for _, node := range p.Order {
		consumed := false
		for _, c := range node.Consumers {
			if p.Scheduled[c.ID] {
				consumed = true
				break
			}
		}
		if !consumed {
			required[node.ID] = true
			p.Required = append(p.Required, node.ID)
		}
	}
	for _, id := range opts.Require {
		if !p.Scheduled[id] {
			return nil, NewConfigError(id.String(), "require",
				fmt.Sprintf("required node %s is not scheduled", id), ErrNotScheduled)
		}
		if !required[id] {
			required[id] = true
			p.Required = append(p.Required, id)
		}
	}

	return p, nil
}

// IsRequired проверяет, входит ли узел в обязательные.
func (p *Plan) IsRequired(id domain.NodeID) bool {
	for _, r := range p.Required {
		if r == id {
			return true
		}
	}
	return false
}

// Size возвращает количество выполняемых узлов.
func (p *Plan) Size() int {
	return len(p.Order)
}
