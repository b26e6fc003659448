package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/pdflow/internal/domain"
)

const sampleFlow = `
name: asicflow
nodes:
  - step: syn
    index: 0
    tool: yosys
    threads: 2
  - step: place
    index: "0"
    tool: openroad
    inputs: [syn/0]
  - step: place
    index: "1"
    tool: openroad
    inputs: [syn]
  - step: placemin
    index: "0"
    tool: minimum
    inputs: [place/0, place/1]
    weights:
      cellarea: 1.0
      errors: 10
`

func TestParseFlow_YAML(t *testing.T) {
	spec, err := ParseFlow([]byte(sampleFlow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "asicflow" || len(spec.Nodes) != 4 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if spec.Nodes[0].ID != nid("syn", "0") || spec.Nodes[0].Threads != 2 {
		t.Errorf("unexpected first node: %+v", spec.Nodes[0])
	}
	if spec.Nodes[2].Inputs[0] != nid("syn", "0") {
		t.Errorf("bare step input should default to index 0, got %v", spec.Nodes[2].Inputs)
	}
	minNode := spec.Nodes[3]
	if minNode.Kind != domain.KindMinimum || minNode.Weights["errors"] != 10 {
		t.Errorf("unexpected minimum node: %+v", minNode)
	}

	if err := Validate(spec); err != nil {
		t.Errorf("parsed flow should validate: %v", err)
	}
}

func TestParseFlow_JSON(t *testing.T) {
	data := `{"name": "tiny", "nodes": [{"step": "syn", "index": "0", "tool": "yosys"}]}`

	spec, err := ParseFlow([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Nodes) != 1 || spec.Nodes[0].Tool != "yosys" {
		t.Errorf("unexpected spec: %+v", spec)
	}
}

func TestParseFlow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", "nodes: [{step: a, index: '0', tool: t}]"},
		{"no nodes", "name: x\nnodes: []"},
		{"missing tool", "name: x\nnodes: [{step: a, index: '0'}]"},
		{"slash in step", "name: x\nnodes: [{step: a/b, index: '0', tool: t}]"},
		{"bad input ref", "name: x\nnodes: [{step: a, index: '0', tool: t, inputs: ['/0']}]"},
		{"negative threads", "name: x\nnodes: [{step: a, index: '0', tool: t, threads: -1}]"},
		{"not yaml", "name: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlow([]byte(tt.data))
			if !errors.Is(err, ErrFlowDecode) {
				t.Errorf("expected ErrFlowDecode, got %v", err)
			}
		})
	}
}

func TestLoadFlowFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte(sampleFlow), 0o644); err != nil {
		t.Fatal(err)
	}
	spec, err := LoadFlowFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "asicflow" {
		t.Errorf("unexpected name %q", spec.Name)
	}

	_, err = LoadFlowFile(filepath.Join(dir, "flow.toml"))
	if !errors.Is(err, ErrFlowFormat) {
		t.Errorf("expected ErrFlowFormat, got %v", err)
	}
}
