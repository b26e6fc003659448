package engine

import (
	"github.com/shaiso/pdflow/internal/domain"
)

// Threads возвращает число потоков для узла.
//
// Явное значение NodeDef.Threads имеет приоритет. Иначе бюджет делится
// поровну между индексами шага: ceil(budget / indices), но не меньше 1.
func Threads(g *Graph, id domain.NodeID, budget int) int {
	node := g.Node(id)
	if node != nil && node.Def.Threads > 0 {
		return node.Def.Threads
	}
	if budget < 1 {
		return 1
	}
	indices := len(g.Indices(id.Step))
	if indices < 1 {
		indices = 1
	}
	threads := (budget + indices - 1) / indices
	if threads < 1 {
		threads = 1
	}
	return threads
}
