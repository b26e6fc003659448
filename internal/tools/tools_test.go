package tools

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/manifest"
)

func newConfig(t *testing.T, tool string, params map[string]any, inputs ...domain.NodeID) *NodeConfig {
	t.Helper()
	def := &domain.NodeDef{
		ID:      domain.NodeID{Step: "place", Index: "1"},
		Tool:    tool,
		Inputs:  inputs,
		Options: params,
	}
	return NewNodeConfig(manifest.New(), "job0", def, t.TempDir(), 4)
}

func writeLog(t *testing.T, cfg *NodeConfig, content string) {
	t.Helper()
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(NewCommandAdapter("yosys"))

	if _, err := r.Get("yosys"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Get("openroad"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
	if !reflect.DeepEqual(r.Names(), []string{"yosys"}) {
		t.Errorf("unexpected names %v", r.Names())
	}

	r = NewRegistry(CommandFactory)
	a, err := r.Get("openroad")
	if err != nil {
		t.Fatalf("fallback should resolve tool: %v", err)
	}
	if a.Name() != "openroad" {
		t.Errorf("unexpected adapter name %q", a.Name())
	}
	if r.Has("openroad") {
		t.Error("fallback adapters are not registered")
	}
}

func TestNodeConfig_ManifestLayout(t *testing.T) {
	cfg := newConfig(t, "openroad", nil)

	_ = cfg.SetExe("openroad")
	_ = cfg.AddOption("-exit", "place.tcl")
	_ = cfg.SetThreads(2)
	_ = cfg.AddOutput("place.def")
	_ = cfg.AddOutput("place.def")

	s := cfg.Store
	if v, _ := s.GetString(manifest.K("tool", "openroad", "place", "1", "exe")); v != "openroad" {
		t.Errorf("unexpected exe %q", v)
	}
	if got := cfg.Args(); !reflect.DeepEqual(got, []string{"-exit", "place.tcl"}) {
		t.Errorf("unexpected args %v", got)
	}
	if cfg.Threads() != 2 {
		t.Errorf("expected 2 threads, got %d", cfg.Threads())
	}
	if got := cfg.DeclaredOutputs(); !reflect.DeepEqual(got, []string{"place.def"}) {
		t.Errorf("outputs should be deduplicated, got %v", got)
	}

	inv := cfg.Invocation()
	if inv.Exe != "openroad" || inv.Threads != 2 || inv.LogPath != filepath.Join(cfg.WorkDir, "place.log") {
		t.Errorf("unexpected invocation %+v", inv)
	}

	if err := cfg.SetThreads(0); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
}

func TestNodeConfig_WarningsPolicy(t *testing.T) {
	cfg := newConfig(t, "openroad", nil)

	if err := cfg.CheckWarnings(false); err != nil {
		t.Fatalf("no warnings should pass strict mode: %v", err)
	}

	cfg.Warnf("pin %s unconnected", "clk")

	if err := cfg.CheckWarnings(true); err != nil {
		t.Errorf("relax mode should tolerate warnings: %v", err)
	}

	err := cfg.CheckWarnings(false)
	if !errors.Is(err, ErrWarnings) {
		t.Fatalf("expected ErrWarnings, got %v", err)
	}
	var aErr *AdapterError
	if !errors.As(err, &aErr) || aErr.Stage != StagePostProcess {
		t.Errorf("expected AdapterError at post_process, got %v", err)
	}
}

func TestCommandAdapter_SetupRequiresExe(t *testing.T) {
	a := NewCommandAdapter("yosys")
	cfg := newConfig(t, "yosys", map[string]any{})

	err := a.Setup(cfg)
	if !errors.Is(err, ErrMissingOption) {
		t.Fatalf("expected ErrMissingOption, got %v", err)
	}
	var aErr *AdapterError
	if !errors.As(err, &aErr) || aErr.Stage != StageSetup {
		t.Errorf("expected AdapterError at setup, got %v", err)
	}
}

func TestCommandAdapter_SetupInvalidPattern(t *testing.T) {
	a := NewCommandAdapter("yosys")
	cfg := newConfig(t, "yosys", map[string]any{
		"exe":     "yosys",
		"metrics": map[string]any{"cells": "no group"},
	})

	if err := a.Setup(cfg); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
}

func TestCommandAdapter_Lifecycle(t *testing.T) {
	syn := domain.NodeID{Step: "syn", Index: "0"}
	a := NewCommandAdapter("openroad")
	cfg := newConfig(t, "openroad", map[string]any{
		"exe":         "openroad",
		"args":        []any{"-threads", "{{ .Threads }}", "{{ index .Inputs \"syn/0\" \"netlist.v\" }}", "{{ .OutDir }}/place.def"},
		"outputs":     []any{"place.def"},
		"vswitch":     "-version",
		"timeout_sec": 30,
		"metrics":     map[string]any{"cellarea": `Design area\s+([0-9.]+)`},
	}, syn)
	_ = cfg.Store.SetOutput(syn, "netlist.v", "/build/syn/netlist.v")

	if err := a.Setup(cfg); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if cfg.Threads() != 4 || cfg.Timeout().Seconds() != 30 {
		t.Errorf("unexpected threads/timeout: %d %s", cfg.Threads(), cfg.Timeout())
	}
	if !reflect.DeepEqual(cfg.VersionSwitch(), []string{"-version"}) {
		t.Errorf("unexpected vswitch %v", cfg.VersionSwitch())
	}

	if err := a.PreProcess(cfg); err != nil {
		t.Fatalf("pre_process: %v", err)
	}
	want := []string{"-threads", "4", "/build/syn/netlist.v", cfg.OutputPath("place.def")}
	if got := cfg.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected args %v, got %v", want, got)
	}
	if _, err := os.Stat(cfg.OutputPath("")); err != nil {
		t.Errorf("outputs dir should exist: %v", err)
	}

	writeLog(t, cfg, "OpenROAD v2.0\nDesign area 123.5 u^2\nWARNING: pin clk floating\nMETRIC holdslack 0.25\n")

	code, err := a.PostProcess(cfg)
	if err != nil {
		t.Fatalf("post_process: %v", err)
	}
	if code != 0 {
		t.Errorf("expected code 0, got %d", code)
	}

	metrics := cfg.Store.Metrics(cfg.Node)
	wantMetrics := map[string]float64{"cellarea": 123.5, "holdslack": 0.25, "errors": 0, "warnings": 1}
	if !reflect.DeepEqual(metrics, wantMetrics) {
		t.Errorf("expected metrics %v, got %v", wantMetrics, metrics)
	}
	if len(cfg.Warnings()) != 1 {
		t.Errorf("expected one warning, got %v", cfg.Warnings())
	}
}

func TestCommandAdapter_PostProcessErrors(t *testing.T) {
	a := NewCommandAdapter("magic")

	cfg := newConfig(t, "magic", map[string]any{"exe": "magic"})
	writeLog(t, cfg, "[ERROR DRT-0001] routing failed\n")
	code, err := a.PostProcess(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code == 0 {
		t.Error("errors in log should give non-zero code")
	}

	cfg = newConfig(t, "magic", map[string]any{"exe": "magic", "fail_on_errors": false})
	writeLog(t, cfg, "Error: something minor\n")
	if code, _ := a.PostProcess(cfg); code != 0 {
		t.Errorf("fail_on_errors=false should give code 0, got %d", code)
	}

	cfg = newConfig(t, "magic", map[string]any{"exe": "magic"})
	if _, err := a.PostProcess(cfg); err == nil {
		t.Error("missing log should be an error")
	}
}

func TestRender_Errors(t *testing.T) {
	ctx := &TemplateContext{Params: map[string]any{}}

	if _, err := Render("{{ .Params.missing }}", ctx); !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
	if _, err := Render("{{ .Step ", ctx); !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
	if got, _ := Render("plain", ctx); got != "plain" {
		t.Errorf("plain strings pass through, got %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		fn   func(string) string
		want string
	}{
		{"trim newline", "8.3.105\n", TrimVersion, "8.3.105"},
		{"git describe", "OpenROAD v2.0-880-gd1c7001ad\n", ParseGitDescribe, "v2.0-880"},
		{"no hash", "v2.0", ParseGitDescribe, "v2.0"},
		{"empty", "  ", ParseGitDescribe, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.raw); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	a := NewCommandAdapter("openroad")
	cfg := newConfig(t, "openroad", map[string]any{"version_format": "git"})
	if got := a.ParseVersionFor(cfg, "OpenROAD v2.0-880-gd1c7001ad"); got != "v2.0-880" {
		t.Errorf("unexpected node version %q", got)
	}
}

func TestScanLog_SkipsNonFiniteMetrics(t *testing.T) {
	log := filepath.Join(t.TempDir(), "place.log")
	content := "METRIC area 12\n" +
		"METRIC area NaN\n" +
		"METRIC wirelength inf\n" +
		"METRIC power -Inf\n" +
		"METRIC util 0.7\n" +
		"worst slack: nan\n"
	if err := os.WriteFile(log, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	scan, err := ScanLog(log, map[string]*regexp.Regexp{
		"slack": regexp.MustCompile(`worst slack: (\S+)`),
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := map[string]float64{"area": 12, "util": 0.7}
	if !reflect.DeepEqual(scan.Metrics, want) {
		t.Errorf("expected %v, got %v", want, scan.Metrics)
	}
	wantNonFinite := []string{"area", "wirelength", "power", "slack"}
	if !reflect.DeepEqual(scan.NonFinite, wantNonFinite) {
		t.Errorf("expected non-finite %v, got %v", wantNonFinite, scan.NonFinite)
	}
}
