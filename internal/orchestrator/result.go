package orchestrator

import (
	"sort"
	"strings"
	"time"

	"github.com/shaiso/pdflow/internal/aggregate"
	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/manifest"
)

// RunResult — результат успешного job.
type RunResult struct {
	// JobID — имя job в истории manifest.
	JobID string

	// Flow — имя flow.
	Flow string

	// Run — данные job.
	Run *domain.Run

	graph *engine.Graph
	store *manifest.Store
	state *RunState
}

// Statuses возвращает копию итоговых статусов выполненных узлов.
func (r *RunResult) Statuses() map[domain.NodeID]domain.NodeStatus {
	return r.state.Statuses()
}

// Status возвращает статус узла: из этого job или, для узлов вне
// steplist, из предыдущих job.
func (r *RunResult) Status(id domain.NodeID) (domain.NodeStatus, bool) {
	if st, ok := r.state.Status(id); ok {
		return st, true
	}
	if r.graph.Node(id) == nil {
		return "", false
	}
	return r.store.PriorStatus(id)
}

// NodeRuns возвращает записи выполнения узлов этого job.
func (r *RunResult) NodeRuns() []domain.NodeRun {
	return r.state.NodeRuns()
}

// FindResult возвращает путь к артефакту kind узла step/index.
// index по умолчанию "0".
//
// Для неизвестного, невыполненного или упавшего узла возвращает false.
func (r *RunResult) FindResult(kind, step string, index ...string) (string, bool) {
	id := domain.NodeID{Step: step, Index: "0"}
	if len(index) > 0 && index[0] != "" {
		id.Index = index[0]
	}
	if r.graph.Node(id) == nil {
		return "", false
	}
	st, _ := r.Status(id)
	return LookupResult(r.store, st, id, kind)
}

// Summary возвращает сводку по узлам этого job в топологическом порядке.
func (r *RunResult) Summary() []SummaryRow {
	rows := BuildSummary(r.graph, r.store, r.state.Statuses())

	durations := make(map[domain.NodeID]time.Duration)
	for _, nr := range r.state.NodeRuns() {
		durations[nr.Node] = nr.Duration()
	}
	for i := range rows {
		rows[i].Duration = durations[rows[i].Node]
	}
	return rows
}

// LookupResult ищет артефакт kind среди outputs узла.
//
// kind совпадает с именем артефакта или с его расширением
// ("def" находит "design.def"). Узел должен быть в SUCCESS.
func LookupResult(store *manifest.Store, status domain.NodeStatus, id domain.NodeID, kind string) (string, bool) {
	if status != domain.NodeStatusSuccess || kind == "" {
		return "", false
	}

	outputs := store.Outputs(id)
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == kind {
			return outputs[name], true
		}
	}
	for _, name := range names {
		if strings.HasSuffix(name, "."+kind) {
			return outputs[name], true
		}
	}
	return "", false
}

// SummaryRow — строка сводки по узлу.
type SummaryRow struct {
	Node     domain.NodeID      `json:"node"`
	Tool     string             `json:"tool,omitempty"`
	Status   domain.NodeStatus  `json:"status"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Score    *float64           `json:"score,omitempty"`
	Selected *domain.NodeID     `json:"selected,omitempty"`
	Duration time.Duration      `json:"duration,omitempty"`
}

// BuildSummary строит сводку по узлам из statuses.
//
// Если g задан, строки идут в топологическом порядке, а Score считается
// по весам узла или, если их нет, по весам первого minimum-потребителя.
// Без графа строки сортируются по идентификатору.
func BuildSummary(g *engine.Graph, store *manifest.Store, statuses map[domain.NodeID]domain.NodeStatus) []SummaryRow {
	ids := make([]domain.NodeID, 0, len(statuses))
	if g != nil {
		for _, node := range g.Order {
			if _, ok := statuses[node.ID]; ok {
				ids = append(ids, node.ID)
			}
		}
	} else {
		for id := range statuses {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if ids[i].Step != ids[j].Step {
				return ids[i].Step < ids[j].Step
			}
			return ids[i].Index < ids[j].Index
		})
	}

	rows := make([]SummaryRow, 0, len(ids))
	for _, id := range ids {
		row := SummaryRow{
			Node:   id,
			Status: statuses[id],
		}
		if metrics := store.Metrics(id); len(metrics) > 0 {
			row.Metrics = metrics
		}
		if sel, ok := store.Selected(id); ok && row.Status == domain.NodeStatusSuccess {
			row.Selected = &sel
		}
		if g != nil {
			row.Tool = g.Tool(id)
			if weights := scoreWeights(g, id); len(weights) > 0 && row.Status == domain.NodeStatusSuccess {
				score := aggregate.Score(row.Metrics, weights)
				row.Score = &score
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// scoreWeights возвращает веса, по которым оценивается узел.
func scoreWeights(g *engine.Graph, id domain.NodeID) map[string]float64 {
	node := g.Node(id)
	if node == nil {
		return nil
	}
	if len(node.Def.Weights) > 0 {
		return node.Def.Weights
	}
	for _, consumer := range node.Consumers {
		if consumer.Kind() == domain.KindMinimum && len(consumer.Def.Weights) > 0 {
			return consumer.Def.Weights
		}
	}
	return nil
}
