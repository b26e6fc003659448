package orchestrator

import (
	"sync"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
)

// RunState — состояние выполнения одного job в памяти.
//
// Таблица статусов меняется только координатором Scheduler;
// мьютекс позволяет безопасно читать её из других горутин.
type RunState struct {
	// Run — данные job.
	Run *domain.Run

	// Plan — выполняемые узлы и статусы невыполняемых входов.
	Plan *engine.Plan

	// nodes — выполнение каждого узла (status, времена, ошибка).
	nodes map[domain.NodeID]*domain.NodeRun

	mu sync.RWMutex
}

// NewRunState создаёт RunState: все выполняемые узлы в PENDING.
func NewRunState(run *domain.Run, plan *engine.Plan) *RunState {
	s := &RunState{
		Run:   run,
		Plan:  plan,
		nodes: make(map[domain.NodeID]*domain.NodeRun, plan.Size()),
	}
	for _, node := range plan.Order {
		s.nodes[node.ID] = &domain.NodeRun{
			RunID:  run.ID,
			JobID:  run.JobID,
			Node:   node.ID,
			Tool:   node.Def.Tool,
			Status: domain.NodeStatusPending,
		}
	}
	return s
}

// Status возвращает статус узла: из таблицы job для выполняемых узлов,
// из истории для невыполняемых входов.
func (s *RunState) Status(id domain.NodeID) (domain.NodeStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status(id)
}

func (s *RunState) status(id domain.NodeID) (domain.NodeStatus, bool) {
	if nr, ok := s.nodes[id]; ok {
		return nr.Status, true
	}
	st, ok := s.Plan.Prior[id]
	return st, ok
}

// ReadyNodes возвращает выполняемые узлы в PENDING, у которых все
// входы в финальном статусе. Порядок — топологический.
func (s *RunState) ReadyNodes() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ready := make([]*engine.Node, 0)
	for _, node := range s.Plan.Order {
		if s.nodes[node.ID].Status != domain.NodeStatusPending {
			continue
		}
		allTerminal := true
		for _, in := range node.Inputs {
			st, _ := s.status(in.ID)
			if !st.IsTerminal() {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			ready = append(ready, node)
		}
	}
	return ready
}

// FailedInput возвращает первый вход узла в статусе ERROR.
func (s *RunState) FailedInput(node *engine.Node) (domain.NodeID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, in := range node.Inputs {
		if st, _ := s.status(in.ID); st == domain.NodeStatusError {
			return in.ID, true
		}
	}
	return domain.NodeID{}, false
}

// MarkRunning помечает узел как выполняющийся.
func (s *RunState) MarkRunning(id domain.NodeID, threads int) *domain.NodeRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	nr := s.nodes[id]
	nr.Threads = threads
	nr.MarkRunning()
	return s.snapshot(nr)
}

// MarkSucceeded помечает узел как успешно завершённый.
func (s *RunState) MarkSucceeded(id domain.NodeID, selected *domain.NodeID) *domain.NodeRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	nr := s.nodes[id]
	nr.Selected = selected
	nr.MarkSucceeded()
	return s.snapshot(nr)
}

// MarkFailed помечает узел как упавший.
func (s *RunState) MarkFailed(id domain.NodeID, errMsg string) *domain.NodeRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	nr := s.nodes[id]
	nr.MarkFailed(errMsg)
	return s.snapshot(nr)
}

func (s *RunState) snapshot(nr *domain.NodeRun) *domain.NodeRun {
	cp := *nr
	return &cp
}

// Statuses возвращает копию таблицы статусов выполняемых узлов.
func (s *RunState) Statuses() map[domain.NodeID]domain.NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.NodeID]domain.NodeStatus, len(s.nodes))
	for id, nr := range s.nodes {
		out[id] = nr.Status
	}
	return out
}

// NodeRuns возвращает копии записей выполнения в топологическом порядке.
func (s *RunState) NodeRuns() []domain.NodeRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.NodeRun, 0, len(s.nodes))
	for _, node := range s.Plan.Order {
		out = append(out, *s.nodes[node.ID])
	}
	return out
}

// RequiredDoomed проверяет, стал ли невозможен успех хотя бы одного
// обязательного узла.
//
// Узел обречён, если он в ERROR; tool и join обречены, если обречён
// любой вход; minimum — только если обречены все входы.
func (s *RunState) RequiredDoomed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memo := make(map[domain.NodeID]bool)
	for _, id := range s.Plan.Required {
		if s.doomed(id, memo) {
			return true
		}
	}
	return false
}

// UnsuccessfulRequired возвращает обязательные узлы не в SUCCESS.
func (s *RunState) UnsuccessfulRequired() []domain.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make([]domain.NodeID, 0)
	for _, id := range s.Plan.Required {
		if st, _ := s.status(id); st != domain.NodeStatusSuccess {
			failed = append(failed, id)
		}
	}
	return failed
}

func (s *RunState) doomed(id domain.NodeID, memo map[domain.NodeID]bool) bool {
	if v, ok := memo[id]; ok {
		return v
	}

	st, _ := s.status(id)
	var result bool
	switch {
	case st == domain.NodeStatusError:
		result = true
	case st == domain.NodeStatusSuccess:
		result = false
	default:
		node := s.Plan.Graph.Node(id)
		if node == nil || len(node.Inputs) == 0 {
			break
		}
		if node.Kind() == domain.KindMinimum {
			result = true
			for _, in := range node.Inputs {
				if !s.doomed(in.ID, memo) {
					result = false
					break
				}
			}
		} else {
			for _, in := range node.Inputs {
				if s.doomed(in.ID, memo) {
					result = true
					break
				}
			}
		}
	}

	memo[id] = result
	return result
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{Total: len(s.nodes)}
	for _, nr := range s.nodes {
		switch nr.Status {
		case domain.NodeStatusPending:
			stats.Pending++
		case domain.NodeStatusRunning:
			stats.Running++
		case domain.NodeStatusSuccess:
			stats.Succeeded++
		case domain.NodeStatusError:
			stats.Failed++
		}
	}
	return stats
}

// RunStats — статистика выполнения job.
type RunStats struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
}
