package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/pdflow/internal/aggregate"
	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/telemetry"
)

func nid(step, index string) domain.NodeID {
	return domain.NodeID{Step: step, Index: index}
}

// minFlow — syn → place{0,1} → placemin → route.
func minFlow() *domain.FlowSpec {
	f := &domain.FlowSpec{Name: "asicflow"}
	f.AddNode("syn", "0", "yosys")
	f.AddNode("place", "0", "openroad", nid("syn", "0"))
	f.AddNode("place", "1", "openroad", nid("syn", "0"))
	f.AddNode("placemin", "0", "minimum", nid("place", "0"), nid("place", "1")).
		Weights = map[string]float64{"area": 1}
	f.AddNode("route", "0", "openroad", nid("placemin", "0"))
	return f
}

func newTestState(t *testing.T, flow *domain.FlowSpec) *RunState {
	t.Helper()

	if err := engine.Validate(flow); err != nil {
		t.Fatalf("validate: %v", err)
	}
	g, err := engine.BuildGraph(flow)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	plan, err := engine.BuildPlan(g, engine.PlanOptions{}, nil)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	return NewRunState(domain.NewRun("job0", flow.Name, nil), plan)
}

// fakeExecutor — NodeExecutor без запуска процессов.
type fakeExecutor struct {
	state   *RunState
	fail    map[domain.NodeID]bool
	threads map[domain.NodeID]int
	metrics map[domain.NodeID]map[string]float64
	delay   time.Duration

	mu          sync.Mutex
	running     int
	maxRunning  int
	ran         []domain.NodeID
	discarded   []domain.NodeID
	transitions []domain.NodeRun
}

func newFakeExecutor(state *RunState) *fakeExecutor {
	return &fakeExecutor{
		state:   state,
		fail:    make(map[domain.NodeID]bool),
		threads: make(map[domain.NodeID]int),
		metrics: make(map[domain.NodeID]map[string]float64),
	}
}

func (f *fakeExecutor) Threads(node *engine.Node) int {
	if n, ok := f.threads[node.ID]; ok {
		return n
	}
	return 1
}

func (f *fakeExecutor) RunTool(ctx context.Context, node *engine.Node) error {
	f.mu.Lock()
	f.running++
	f.maxRunning = max(f.maxRunning, f.running)
	f.ran = append(f.ran, node.ID)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	if f.fail[node.ID] {
		return &NodeError{Node: node.ID, Tool: node.Def.Tool, Stage: "run", Err: ErrToolExit}
	}
	return nil
}

func (f *fakeExecutor) Aggregate(node *engine.Node) (*domain.NodeID, error) {
	inputs := make([]aggregate.Input, 0, len(node.Inputs))
	for _, in := range node.Inputs {
		st, _ := f.state.Status(in.ID)
		inputs = append(inputs, aggregate.Input{ID: in.ID, Status: st, Metrics: f.metrics[in.ID]})
	}
	res := aggregate.Evaluate(node.Kind(), inputs, node.Def.Weights)
	if res.Status != domain.NodeStatusSuccess {
		return nil, ErrAggregate
	}
	return res.Selected, nil
}

func (f *fakeExecutor) Discard(node *engine.Node) {
	f.discarded = append(f.discarded, node.ID)
}

func (f *fakeExecutor) Transition(nr *domain.NodeRun) {
	f.transitions = append(f.transitions, *nr)
}

func (f *fakeExecutor) statusesOf(id domain.NodeID) []domain.NodeStatus {
	var out []domain.NodeStatus
	for _, nr := range f.transitions {
		if nr.Node == id {
			out = append(out, nr.Status)
		}
	}
	return out
}

func TestScheduler_RunsInTopologicalOrder(t *testing.T) {
	f := &domain.FlowSpec{Name: "chain"}
	f.AddNode("syn", "0", "yosys")
	f.AddNode("place", "0", "openroad", nid("syn", "0"))
	f.AddNode("route", "0", "openroad", nid("place", "0"))

	state := newTestState(t, f)
	exec := newFakeExecutor(state)

	if err := NewScheduler(SchedulerConfig{MaxParallel: 4}).Run(context.Background(), state, exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.NodeID{nid("syn", "0"), nid("place", "0"), nid("route", "0")}
	if !slices.Equal(exec.ran, want) {
		t.Errorf("expected run order %v, got %v", want, exec.ran)
	}
	for id, st := range state.Statuses() {
		if st != domain.NodeStatusSuccess {
			t.Errorf("expected %s SUCCESS, got %s", id, st)
		}
	}

	got := exec.statusesOf(nid("place", "0"))
	if !slices.Equal(got, []domain.NodeStatus{domain.NodeStatusRunning, domain.NodeStatusSuccess}) {
		t.Errorf("expected RUNNING then SUCCESS, got %v", got)
	}
}

func TestScheduler_Limits(t *testing.T) {
	tests := []struct {
		name        string
		maxParallel int
		budget      int
		threads     int
		wantMax     int
	}{
		{"max parallel", 2, 16, 1, 2},
		{"thread budget", 8, 4, 2, 2},
		{"threads above budget are capped", 8, 2, 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &domain.FlowSpec{Name: "wide"}
			for _, idx := range []string{"0", "1", "2", "3", "4"} {
				f.AddNode("place", idx, "openroad")
			}

			state := newTestState(t, f)
			exec := newFakeExecutor(state)
			exec.delay = 20 * time.Millisecond
			for _, node := range state.Plan.Order {
				exec.threads[node.ID] = tt.threads
			}

			sched := NewScheduler(SchedulerConfig{MaxParallel: tt.maxParallel, ThreadBudget: tt.budget})
			if err := sched.Run(context.Background(), state, exec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if exec.maxRunning > tt.wantMax {
				t.Errorf("expected at most %d concurrent tools, got %d", tt.wantMax, exec.maxRunning)
			}
			if len(exec.ran) != 5 {
				t.Errorf("expected 5 tools run, got %d", len(exec.ran))
			}
		})
	}
}

func TestScheduler_ShortCircuitAndHalt(t *testing.T) {
	f := &domain.FlowSpec{Name: "halt"}
	f.AddNode("syn", "0", "yosys")
	f.AddNode("place", "0", "openroad", nid("syn", "0"))
	f.AddNode("lint", "0", "verilator")

	state := newTestState(t, f)
	exec := newFakeExecutor(state)
	exec.fail[nid("syn", "0")] = true

	if err := NewScheduler(SchedulerConfig{MaxParallel: 1}).Run(context.Background(), state, exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := state.Statuses()
	if statuses[nid("syn", "0")] != domain.NodeStatusError {
		t.Errorf("expected syn ERROR, got %s", statuses[nid("syn", "0")])
	}
	if statuses[nid("place", "0")] != domain.NodeStatusError {
		t.Errorf("expected place ERROR, got %s", statuses[nid("place", "0")])
	}
	if statuses[nid("lint", "0")] != domain.NodeStatusPending {
		t.Errorf("expected lint to stay PENDING after halt, got %s", statuses[nid("lint", "0")])
	}

	if slices.Contains(exec.ran, nid("place", "0")) {
		t.Error("place must not run after its input failed")
	}
	if !slices.Contains(exec.discarded, nid("place", "0")) {
		t.Error("expected place results to be discarded")
	}

	for _, nr := range state.NodeRuns() {
		if nr.Node == nid("place", "0") && nr.Error == "" {
			t.Error("expected short-circuit reason on place")
		}
	}
}

func TestScheduler_Minimum(t *testing.T) {
	tests := []struct {
		name      string
		fail      []domain.NodeID
		wantMin   domain.NodeStatus
		wantRoute domain.NodeStatus
		wantSel   domain.NodeID
	}{
		{
			name:      "lowest score wins",
			wantMin:   domain.NodeStatusSuccess,
			wantRoute: domain.NodeStatusSuccess,
			wantSel:   nid("place", "1"),
		},
		{
			name:      "failed branch is skipped",
			fail:      []domain.NodeID{nid("place", "1")},
			wantMin:   domain.NodeStatusSuccess,
			wantRoute: domain.NodeStatusSuccess,
			wantSel:   nid("place", "0"),
		},
		{
			name:      "all branches failed",
			fail:      []domain.NodeID{nid("place", "0"), nid("place", "1")},
			wantMin:   domain.NodeStatusError,
			wantRoute: domain.NodeStatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newTestState(t, minFlow())
			exec := newFakeExecutor(state)
			exec.metrics[nid("place", "0")] = map[string]float64{"area": 20}
			exec.metrics[nid("place", "1")] = map[string]float64{"area": 10}
			for _, id := range tt.fail {
				exec.fail[id] = true
			}

			if err := NewScheduler(SchedulerConfig{MaxParallel: 2}).Run(context.Background(), state, exec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			statuses := state.Statuses()
			if got := statuses[nid("placemin", "0")]; got != tt.wantMin {
				t.Errorf("expected placemin %s, got %s", tt.wantMin, got)
			}
			if got := statuses[nid("route", "0")]; got != tt.wantRoute {
				t.Errorf("expected route %s, got %s", tt.wantRoute, got)
			}

			for _, nr := range state.NodeRuns() {
				if nr.Node != nid("placemin", "0") {
					continue
				}
				if tt.wantMin == domain.NodeStatusSuccess {
					if nr.Selected == nil || *nr.Selected != tt.wantSel {
						t.Errorf("expected selected %s, got %v", tt.wantSel, nr.Selected)
					}
				}
			}

			if got := exec.statusesOf(nid("placemin", "0")); slices.Contains(got, domain.NodeStatusRunning) {
				t.Errorf("aggregator must not pass through RUNNING, got %v", got)
			}
			if tt.wantRoute == domain.NodeStatusError && slices.Contains(exec.ran, nid("route", "0")) {
				t.Error("route must not run when placemin failed")
			}
		})
	}
}

func TestScheduler_ContextCancelled(t *testing.T) {
	state := newTestState(t, minFlow())
	exec := newFakeExecutor(state)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewScheduler(SchedulerConfig{}).Run(ctx, state, exec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(exec.ran) != 0 {
		t.Errorf("expected no tools run, got %v", exec.ran)
	}
	if got := state.Stats().Pending; got != state.Plan.Size() {
		t.Errorf("expected all nodes PENDING, got %d", got)
	}
}

func TestScheduler_LogsJobOnce(t *testing.T) {
	state := newTestState(t, minFlow())
	exec := newFakeExecutor(state)
	exec.fail[nid("syn", "0")] = true

	var buf bytes.Buffer
	logger := telemetry.WithJobID(slog.New(slog.NewJSONHandler(&buf, nil)), "job0")

	if err := NewScheduler(SchedulerConfig{MaxParallel: 1, Logger: logger}).Run(context.Background(), state, exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) == 0 || len(lines[0]) == 0 {
		t.Fatal("expected scheduler log records")
	}
	for _, line := range lines {
		if n := bytes.Count(line, []byte(`"job":`)); n != 1 {
			t.Errorf("expected job attribute once, got %d in %s", n, line)
		}
	}
}
