package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/pdflow/internal/domain"
)

type fakePriors map[domain.NodeID]domain.NodeStatus

func (f fakePriors) PriorStatus(id domain.NodeID) (domain.NodeStatus, bool) {
	st, ok := f[id]
	return st, ok
}

func TestBuildPlan_AllNodes(t *testing.T) {
	g, err := BuildGraph(minFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := BuildPlan(g, PlanOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Size() != 5 {
		t.Errorf("expected 5 scheduled nodes, got %d", p.Size())
	}
	if len(p.Required) != 1 || p.Required[0] != nid("route", "0") {
		t.Errorf("expected route/0 as the only required node, got %v", p.Required)
	}
	if len(p.Prior) != 0 {
		t.Errorf("expected no prior inputs, got %v", p.Prior)
	}
}

func TestBuildPlan_Steplist(t *testing.T) {
	g, err := BuildGraph(minFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	priors := fakePriors{
		nid("syn", "0"): domain.NodeStatusSuccess,
	}

	p, err := BuildPlan(g, PlanOptions{Steplist: []string{"place", "placemin"}}, priors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Scheduled[nid("syn", "0")] || p.Scheduled[nid("route", "0")] {
		t.Error("syn and route should not be scheduled")
	}
	if !p.Scheduled[nid("place", "1")] {
		t.Error("place/1 should be scheduled")
	}
	if p.Prior[nid("syn", "0")] != domain.NodeStatusSuccess {
		t.Errorf("expected prior SUCCESS for syn/0, got %v", p.Prior)
	}
	if !p.IsRequired(nid("placemin", "0")) || p.IsRequired(nid("place", "0")) {
		t.Errorf("unexpected required set %v", p.Required)
	}
}

func TestBuildPlan_UnsatisfiedInput(t *testing.T) {
	g, err := BuildGraph(minFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = BuildPlan(g, PlanOptions{Steplist: []string{"route"}}, fakePriors{})
	if !errors.Is(err, ErrUnsatisfiedInput) {
		t.Fatalf("expected ErrUnsatisfiedInput, got %v", err)
	}

	var cErr *ConfigError
	if !errors.As(err, &cErr) || cErr.Node != "route/0" {
		t.Errorf("expected ConfigError on route/0, got %v", err)
	}
}

func TestBuildPlan_UnknownStep(t *testing.T) {
	g, err := BuildGraph(minFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = BuildPlan(g, PlanOptions{Steplist: []string{"cts"}}, nil)
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}

func TestBuildPlan_Require(t *testing.T) {
	g, err := BuildGraph(minFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := BuildPlan(g, PlanOptions{Require: []domain.NodeID{nid("place", "0")}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsRequired(nid("place", "0")) || !p.IsRequired(nid("route", "0")) {
		t.Errorf("unexpected required set %v", p.Required)
	}

	priors := fakePriors{nid("syn", "0"): domain.NodeStatusSuccess}
	_, err = BuildPlan(g, PlanOptions{
		Steplist: []string{"place"},
		Require:  []domain.NodeID{nid("route", "0")},
	}, priors)
	if !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("expected ErrNotScheduled, got %v", err)
	}
}
