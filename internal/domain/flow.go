package domain

// FlowSpec — описание графа flow.
//
// Узлы хранятся в порядке объявления: этот порядок используется
// как детерминированный порядок готовности и при разрешении ничьих.
type FlowSpec struct {
	// Name — имя flow (например, "asicflow").
	Name string `json:"name,omitempty"`

	// Nodes — узлы в порядке объявления.
	Nodes []NodeDef `json:"nodes"`
}

// Node возвращает определение узла по ID.
func (f *FlowSpec) Node(id NodeID) (*NodeDef, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Steps возвращает уникальные имена шагов в порядке объявления.
func (f *FlowSpec) Steps() []string {
	seen := make(map[string]bool)
	steps := make([]string, 0)
	for _, n := range f.Nodes {
		if !seen[n.ID.Step] {
			seen[n.ID.Step] = true
			steps = append(steps, n.ID.Step)
		}
	}
	return steps
}

// AddNode добавляет узел в flow. Kind выводится из имени инструмента.
func (f *FlowSpec) AddNode(step, index, tool string, inputs ...NodeID) *NodeDef {
	f.Nodes = append(f.Nodes, NodeDef{
		ID:     NodeID{Step: step, Index: index},
		Kind:   KindOf(tool),
		Tool:   tool,
		Inputs: inputs,
	})
	return &f.Nodes[len(f.Nodes)-1]
}
