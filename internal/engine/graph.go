package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/pdflow/internal/domain"
)

// Node — узел графа flow.
type Node struct {
	// Def — определение узла из FlowSpec.
	Def *domain.NodeDef

	// ID — идентификатор узла.
	ID domain.NodeID

	// Position — позиция в порядке объявления.
	Position int

	// InDegree — количество входов.
	InDegree int

	// Inputs — входы в порядке объявления.
	Inputs []*Node

	// Consumers — узлы, использующие этот узел как вход.
	Consumers []*Node
}

// Kind возвращает вид узла.
func (n *Node) Kind() domain.NodeKind {
	return n.Def.Kind
}

// Graph — направленный ациклический граф узлов flow.
type Graph struct {
	// Name — имя flow.
	Name string

	// Nodes — все узлы графа.
	Nodes map[domain.NodeID]*Node

	// Roots — узлы без входов в порядке объявления.
	Roots []*Node

	// Order — топологический порядок; среди готовых одновременно узлов
	// сохраняется порядок объявления.
	Order []*Node

	// declared — узлы в порядке объявления.
	declared []*Node
}

// BuildGraph строит граф из FlowSpec.
//
// Проверяет ссылки на входы и отсутствие циклов. Полную валидацию
// узлов выполняет Validate.
func BuildGraph(flow *domain.FlowSpec) (*Graph, error) {
	if flow == nil || len(flow.Nodes) == 0 {
		return nil, NewConfigError("", "nodes", "flow has no nodes", ErrEmptyFlow)
	}

	g := &Graph{
		Name:  flow.Name,
		Nodes: make(map[domain.NodeID]*Node, len(flow.Nodes)),
	}

	// Первый проход: создаём все узлы
	for i := range flow.Nodes {
		def := &flow.Nodes[i]
		def.Kind = domain.KindOf(def.Tool)
		if _, exists := g.Nodes[def.ID]; exists {
			return nil, NewConfigError(def.ID.String(), "id",
				fmt.Sprintf("duplicate node: %s", def.ID), ErrDuplicateNode)
		}
		node := &Node{
			Def:      def,
			ID:       def.ID,
			Position: i,
		}
		g.Nodes[def.ID] = node
		g.declared = append(g.declared, node)
	}

	// Второй проход: связываем узлы по входам
	for _, node := range g.declared {
		if err := g.linkInputs(node); err != nil {
			return nil, err
		}
	}

	g.findRoots()

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// linkInputs связывает узел с его входами.
func (g *Graph) linkInputs(node *Node) error {
	for _, in := range node.Def.Inputs {
		if in == node.ID {
			return NewConfigError(node.ID.String(), "inputs",
				"node depends on itself", ErrSelfDependency)
		}
		dep, exists := g.Nodes[in]
		if !exists {
			return NewConfigError(node.ID.String(), "inputs",
				fmt.Sprintf("input refers to unknown node: %s", in), ErrMissingInput)
		}
		g.addEdge(dep, node)
	}
	return nil
}

// addEdge добавляет ребро from → to.
// Повторные ребра игнорируются, чтобы не учитывать InDegree дважды.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.Inputs {
		if dep.ID == from.ID {
			return
		}
	}
	from.Consumers = append(from.Consumers, to)
	to.Inputs = append(to.Inputs, from)
	to.InDegree++
}

// findRoots находит узлы без входов.
func (g *Graph) findRoots() {
	g.Roots = make([]*Node, 0)
	for _, node := range g.declared {
		if node.InDegree == 0 {
			g.Roots = append(g.Roots, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Из готовых узлов первым берётся объявленный раньше.
func (g *Graph) topologicalSort() ([]*Node, error) {
	inDegree := make(map[domain.NodeID]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := slices.Clone(g.Roots)
	order := make([]*Node, 0, len(g.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		released := false
		for _, consumer := range node.Consumers {
			inDegree[consumer.ID]--
			if inDegree[consumer.ID] == 0 {
				queue = append(queue, consumer)
				released = true
			}
		}
		if released {
			slices.SortStableFunc(queue, func(a, b *Node) int {
				return a.Position - b.Position
			})
		}
	}

	if len(order) != len(g.Nodes) {
		stuck := make([]string, 0)
		for _, node := range g.declared {
			if inDegree[node.ID] > 0 {
				stuck = append(stuck, node.ID.String())
			}
		}
		return nil, NewConfigError("", "inputs",
			fmt.Sprintf("cyclic dependency among %v", stuck), ErrCyclicDependency)
	}

	return order, nil
}

// Node возвращает узел по ID.
func (g *Graph) Node(id domain.NodeID) *Node {
	return g.Nodes[id]
}

// Tool возвращает имя инструмента узла.
func (g *Graph) Tool(id domain.NodeID) string {
	if node := g.Nodes[id]; node != nil {
		return node.Def.Tool
	}
	return ""
}

// Inputs возвращает входы узла в порядке объявления.
func (g *Graph) Inputs(id domain.NodeID) []domain.NodeID {
	if node := g.Nodes[id]; node != nil {
		return slices.Clone(node.Def.Inputs)
	}
	return nil
}

// Weights возвращает веса метрик узла.
func (g *Graph) Weights(id domain.NodeID) map[string]float64 {
	if node := g.Nodes[id]; node != nil {
		return node.Def.Weights
	}
	return nil
}

// Steps возвращает уникальные имена шагов в порядке объявления.
func (g *Graph) Steps() []string {
	seen := make(map[string]bool)
	steps := make([]string, 0)
	for _, node := range g.declared {
		if !seen[node.ID.Step] {
			seen[node.ID.Step] = true
			steps = append(steps, node.ID.Step)
		}
	}
	return steps
}

// Indices возвращает индексы шага в порядке объявления.
func (g *Graph) Indices(step string) []string {
	indices := make([]string, 0)
	for _, node := range g.declared {
		if node.ID.Step == step {
			indices = append(indices, node.ID.Index)
		}
	}
	return indices
}

// Declared возвращает узлы в порядке объявления.
func (g *Graph) Declared() []*Node {
	return slices.Clone(g.declared)
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}
