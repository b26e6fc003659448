package engine

import (
	"fmt"
	"math"

	"github.com/shaiso/pdflow/internal/domain"
)

// Validate выполняет полную валидацию FlowSpec.
//
// Проверяет:
// - Наличие узлов
// - Уникальность (step, index)
// - Наличие инструмента
// - Существование входов и отсутствие self-dependency
// - Наличие входов у join/minimum
// - Корректность весов
// - Отсутствие циклов (делегируется BuildGraph)
func Validate(flow *domain.FlowSpec) error {
	if flow == nil || len(flow.Nodes) == 0 {
		return NewConfigError("", "nodes", "flow has no nodes", ErrEmptyFlow)
	}

	ids := make(map[domain.NodeID]bool, len(flow.Nodes))
	for i := range flow.Nodes {
		if err := ValidateNode(&flow.Nodes[i], ids); err != nil {
			return err
		}
	}

	if err := validateInputs(flow.Nodes, ids); err != nil {
		return err
	}

	if _, err := BuildGraph(flow); err != nil {
		return err
	}

	return nil
}

// ValidateNode валидирует один узел.
// ids — уже встреченные идентификаторы (для проверки уникальности).
func ValidateNode(node *domain.NodeDef, ids map[domain.NodeID]bool) error {
	if node.ID.Step == "" {
		return NewConfigError("", "step", "node has empty step", ErrEmptyStep)
	}
	if node.ID.Index == "" {
		return NewConfigError(node.ID.Step, "index", "node has empty index", ErrEmptyIndex)
	}

	name := node.ID.String()
	if ids[node.ID] {
		return NewConfigError(name, "id",
			fmt.Sprintf("duplicate node: %s", name), ErrDuplicateNode)
	}
	ids[node.ID] = true

	if node.Tool == "" {
		return NewConfigError(name, "tool", "node has empty tool", ErrEmptyTool)
	}
	node.Kind = domain.KindOf(node.Tool)

	if node.IsAggregator() && len(node.Inputs) == 0 {
		return NewConfigError(name, "inputs",
			fmt.Sprintf("%s node requires at least one input", node.Tool), ErrNoAggregatorInputs)
	}

	for _, in := range node.Inputs {
		if in == node.ID {
			return NewConfigError(name, "inputs", "node depends on itself", ErrSelfDependency)
		}
	}

	for metric, weight := range node.Weights {
		if metric == "" {
			return NewConfigError(name, "weights", "weight has empty metric name", ErrInvalidWeight)
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return NewConfigError(name, "weights",
				fmt.Sprintf("weight for %s is not finite", metric), ErrInvalidWeight)
		}
	}

	return nil
}

// validateInputs проверяет, что все входы ссылаются на существующие узлы.
func validateInputs(nodes []domain.NodeDef, ids map[domain.NodeID]bool) error {
	for i := range nodes {
		node := &nodes[i]
		for _, in := range node.Inputs {
			if !ids[in] {
				return NewConfigError(node.ID.String(), "inputs",
					fmt.Sprintf("input refers to unknown node: %s", in), ErrMissingInput)
			}
		}
	}
	return nil
}
