package manifest

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shaiso/pdflow/internal/domain"
)

func TestStore_SetGet(t *testing.T) {
	s := New()

	if err := s.Set(K("option", "scheduler", "name"), "slurm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := s.GetString(K("option", "scheduler", "name"))
	if !ok || v != "slurm" {
		t.Errorf("expected slurm, got %q (ok=%v)", v, ok)
	}

	if _, ok := s.Get(K("option", "scheduler")); ok {
		t.Error("interior node should not be returned by Get")
	}
	if !s.Exists(K("option", "scheduler")) {
		t.Error("interior node should exist")
	}
	if s.Exists(K("option", "missing")) {
		t.Error("missing key should not exist")
	}
}

func TestStore_NumbersNormalized(t *testing.T) {
	s := New()

	if err := s.Set(K("metric", "place", "0", "cellarea"), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := s.GetFloat(K("metric", "place", "0", "cellarea"))
	if !ok || v != 42 {
		t.Errorf("expected 42, got %v (ok=%v)", v, ok)
	}
}

func TestStore_KeyConflict(t *testing.T) {
	s := New()

	if err := s.Set(K("a", "b"), "leaf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.Set(K("a", "b", "c"), "x")
	if !errors.Is(err, ErrKeyConflict) {
		t.Errorf("expected ErrKeyConflict through leaf, got %v", err)
	}

	err = s.Set(K("a"), "x")
	if !errors.Is(err, ErrKeyConflict) {
		t.Errorf("expected ErrKeyConflict on interior, got %v", err)
	}
}

func TestStore_InvalidValues(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		key   Key
		value any
		want  error
	}{
		{"empty key", K(), "x", ErrEmptyKey},
		{"nil value", K("a"), nil, ErrInvalidValue},
		{"map value", K("a"), map[string]string{"x": "y"}, ErrInvalidValue},
		{"NaN", K("a"), math.NaN(), ErrInvalidValue},
		{"infinity", K("a"), math.Inf(1), ErrInvalidValue},
		{"NaN in list", K("a"), []float64{1, math.NaN()}, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set(tt.key, tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStore_Add(t *testing.T) {
	s := New()

	for _, v := range []string{"-a", "-b"} {
		if err := s.Add(K("tool", "yosys", "option"), v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := s.GetStrings(K("tool", "yosys", "option"))
	if !reflect.DeepEqual(got, []string{"-a", "-b"}) {
		t.Errorf("unexpected list: %v", got)
	}

	if err := s.Set(K("scalar"), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(K("scalar"), "y"); !errors.Is(err, ErrNotList) {
		t.Errorf("expected ErrNotList, got %v", err)
	}
}

func TestStore_ListIsCopied(t *testing.T) {
	s := New()
	_ = s.Set(K("list"), []string{"a", "b"})

	v, _ := s.Get(K("list"))
	v.([]any)[0] = "mutated"

	if got := s.GetStrings(K("list")); got[0] != "a" {
		t.Errorf("store mutated through returned list: %v", got)
	}
}

func TestStore_ChildrenSorted(t *testing.T) {
	s := New()
	_ = s.Set(K("output", "syn", "1", "def"), "b")
	_ = s.Set(K("output", "syn", "0", "def"), "a")
	_ = s.Set(K("output", "syn", "10", "def"), "c")

	got := s.Children(K("output", "syn"))
	want := []string{"0", "1", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if s.Children(K("output", "syn", "0", "def")) != nil {
		t.Error("leaf should have no children")
	}
	if s.Children(K("nope")) != nil {
		t.Error("missing key should have no children")
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	_ = s.Set(K("metric", "place", "0", "errors"), 0)

	if !s.Delete(K("metric", "place")) {
		t.Error("expected delete to report existing key")
	}
	if s.Exists(K("metric", "place", "0", "errors")) {
		t.Error("subtree should be removed")
	}
	if s.Delete(K("metric", "place")) {
		t.Error("second delete should report missing key")
	}
}

func TestStore_NodeHelpers(t *testing.T) {
	s := New()
	id := domain.NodeID{Step: "place", Index: "1"}

	_ = s.SetMetric(id, "cellarea", 10.5)
	_ = s.SetOutput(id, "place.def", "/tmp/place.def")
	_ = s.SetSelected(domain.NodeID{Step: "placemin", Index: "0"}, id)

	if m := s.Metrics(id); m["cellarea"] != 10.5 {
		t.Errorf("unexpected metrics: %v", m)
	}
	if o := s.Outputs(id); o["place.def"] != "/tmp/place.def" {
		t.Errorf("unexpected outputs: %v", o)
	}
	sel, ok := s.Selected(domain.NodeID{Step: "placemin", Index: "0"})
	if !ok || sel != id {
		t.Errorf("unexpected selection: %v (ok=%v)", sel, ok)
	}

	s.ClearNode(id)
	if len(s.Metrics(id)) != 0 || len(s.Outputs(id)) != 0 {
		t.Error("ClearNode should drop node results")
	}
}

func TestStore_History(t *testing.T) {
	s := New()
	place := domain.NodeID{Step: "place", Index: "0"}

	if got := s.NextJobID(); got != "job0" {
		t.Fatalf("expected job0, got %s", got)
	}

	_ = s.AddJob("job0")
	_ = s.AddJob("job0")
	_ = s.SetNodeStatus("job0", place, domain.NodeStatusError)

	if got := s.Jobs(); !reflect.DeepEqual(got, []string{"job0"}) {
		t.Errorf("AddJob should be idempotent, got %v", got)
	}
	if got := s.NextJobID(); got != "job1" {
		t.Errorf("expected job1, got %s", got)
	}

	st, ok := s.NodeStatus("job0", place)
	if !ok || st != domain.NodeStatusError {
		t.Errorf("expected ERROR, got %s", st)
	}
	if v, _ := s.GetString(K("history", "job0", "flowstatus", "place", "0", "status")); v != "ERROR" {
		t.Errorf("unexpected raw status %q", v)
	}

	_ = s.AddJob("job1")
	_ = s.SetNodeStatus("job1", place, domain.NodeStatusSuccess)
	_ = s.AddJob("job2")
	_ = s.SetNodeStatus("job2", place, domain.NodeStatusPending)

	st, ok = s.PriorStatus(place)
	if !ok || st != domain.NodeStatusSuccess {
		t.Errorf("expected prior SUCCESS from job1, got %s (ok=%v)", st, ok)
	}

	if _, ok := s.PriorStatus(domain.NodeID{Step: "route", Index: "0"}); ok {
		t.Error("unknown node should have no prior status")
	}
}

func TestStore_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "manifest.json")

	s := New()
	_ = s.AddJob("job0")
	_ = s.SetNodeStatus("job0", domain.NodeID{Step: "syn", Index: "0"}, domain.NodeStatusSuccess)
	_ = s.SetMetric(domain.NodeID{Step: "syn", Index: "0"}, "cells", 128)

	if err := s.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v, ok := loaded.Metric(domain.NodeID{Step: "syn", Index: "0"}, "cells"); !ok || v != 128 {
		t.Errorf("expected metric 128, got %v", v)
	}
	if got := loaded.Jobs(); !reflect.DeepEqual(got, []string{"job0"}) {
		t.Errorf("unexpected jobs: %v", got)
	}
}

func TestReadFile_Missing(t *testing.T) {
	s, err := ReadFile(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Children(nil)) != 0 {
		t.Error("expected empty manifest")
	}
}

func TestStore_NonFiniteMetricKeepsFileWritable(t *testing.T) {
	s := New()
	id := domain.NodeID{Step: "place", Index: "0"}

	if err := s.SetMetric(id, "area", math.NaN()); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, ok := s.Metric(id, "area"); ok {
		t.Error("rejected metric must not be stored")
	}

	if err := s.SetMetric(id, "area", 10); err != nil {
		t.Fatalf("set metric: %v", err)
	}
	if err := s.WriteFile(filepath.Join(t.TempDir(), "manifest.json")); err != nil {
		t.Errorf("manifest must stay writable: %v", err)
	}
}
