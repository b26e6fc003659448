package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/shaiso/pdflow/internal/domain"
)

func TestValidate_EmptyFlow(t *testing.T) {
	tests := []struct {
		name string
		flow *domain.FlowSpec
	}{
		{name: "nil flow", flow: nil},
		{name: "no nodes", flow: &domain.FlowSpec{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.flow); !errors.Is(err, ErrEmptyFlow) {
				t.Errorf("expected ErrEmptyFlow, got %v", err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *domain.FlowSpec)
		want  error
	}{
		{
			name: "empty step",
			build: func(f *domain.FlowSpec) {
				f.AddNode("", "0", "yosys")
			},
			want: ErrEmptyStep,
		},
		{
			name: "empty index",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "", "yosys")
			},
			want: ErrEmptyIndex,
		},
		{
			name: "empty tool",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "")
			},
			want: ErrEmptyTool,
		},
		{
			name: "duplicate node",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "yosys")
				f.AddNode("syn", "0", "yosys")
			},
			want: ErrDuplicateNode,
		},
		{
			name: "self dependency",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "yosys", nid("syn", "0"))
			},
			want: ErrSelfDependency,
		},
		{
			name: "missing input",
			build: func(f *domain.FlowSpec) {
				f.AddNode("place", "0", "openroad", nid("syn", "0"))
			},
			want: ErrMissingInput,
		},
		{
			name: "join without inputs",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "yosys")
				f.AddNode("joined", "0", "join")
			},
			want: ErrNoAggregatorInputs,
		},
		{
			name: "minimum without inputs",
			build: func(f *domain.FlowSpec) {
				f.AddNode("best", "0", "minimum")
			},
			want: ErrNoAggregatorInputs,
		},
		{
			name: "empty weight name",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "yosys").Weights = map[string]float64{"": 1}
			},
			want: ErrInvalidWeight,
		},
		{
			name: "infinite weight",
			build: func(f *domain.FlowSpec) {
				f.AddNode("syn", "0", "yosys").Weights = map[string]float64{"area": math.Inf(1)}
			},
			want: ErrInvalidWeight,
		},
		{
			name: "cycle",
			build: func(f *domain.FlowSpec) {
				f.AddNode("a", "0", "tool", nid("b", "0"))
				f.AddNode("b", "0", "tool", nid("a", "0"))
			},
			want: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &domain.FlowSpec{}
			tt.build(f)

			err := Validate(f)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			var cErr *ConfigError
			if !errors.As(err, &cErr) {
				t.Errorf("expected ConfigError, got %T", err)
			}
		})
	}
}

func TestValidate_ValidFlow(t *testing.T) {
	if err := Validate(minFlow()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SetsKind(t *testing.T) {
	f := &domain.FlowSpec{Nodes: []domain.NodeDef{
		{ID: nid("a", "0"), Tool: "yosys"},
		{ID: nid("b", "0"), Tool: "join", Inputs: []domain.NodeID{nid("a", "0")}},
	}}

	if err := Validate(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Nodes[1].Kind != domain.KindJoin {
		t.Errorf("expected join kind, got %s", f.Nodes[1].Kind)
	}
}
