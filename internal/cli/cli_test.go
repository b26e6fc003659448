package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/pdflow/internal/api"
	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/mq"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// flowYAML — syn → place{0,1} → placemin → route, инструменты — sh.
const flowYAML = `
name: asicflow
nodes:
  - step: syn
    index: "0"
    tool: yosys
    options:
      exe: sh
      args: ["-c", "%SYN%"]
      outputs: [design.def]
  - step: place
    index: "0"
    tool: openroad
    inputs: [syn/0]
    options:
      exe: sh
      args: ["-c", "echo METRIC area 20; : > outputs/design.def"]
      outputs: [design.def]
  - step: place
    index: "1"
    tool: openroad
    inputs: [syn/0]
    options:
      exe: sh
      args: ["-c", "echo METRIC area 10; : > outputs/design.def"]
      outputs: [design.def]
  - step: placemin
    index: "0"
    tool: minimum
    inputs: [place/0, place/1]
    weights: {area: 1}
  - step: route
    index: "0"
    tool: openroad
    inputs: [placemin/0]
    options:
      exe: sh
      args: ["-c", ": > outputs/design.def"]
      outputs: [design.def]
`

func writeFlow(t *testing.T, synScript string) string {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	path := filepath.Join(t.TempDir(), "flow.yaml")
	data := strings.Replace(flowYAML, "%SYN%", synScript, 1)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write flow: %v", err)
	}
	return path
}

// runCmd выполняет команду run с JSON-выводом.
func runCmd(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := NewRunCmd(func() *Output { return NewOutputTo(true, &stdout, io.Discard) })
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return &stdout, cmd.ExecuteContext(ctx)
}

func decodeRows(t *testing.T, buf *bytes.Buffer) map[string]orchestrator.SummaryRow {
	t.Helper()

	var rows []orchestrator.SummaryRow
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, buf.String())
	}
	out := make(map[string]orchestrator.SummaryRow, len(rows))
	for _, r := range rows {
		out[r.Node.String()] = r
	}
	return out
}

func TestRunCmd_Succeeds(t *testing.T) {
	flow := writeFlow(t, ": > outputs/design.def")
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")

	stdout, err := runCmd(t, flow,
		"--manifest", manifestPath,
		"--workdir", filepath.Join(dir, "build"),
		"--quiet",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rows := decodeRows(t, stdout)
	if len(rows) != 5 {
		t.Fatalf("expected 5 summary rows, got %d", len(rows))
	}
	minRow := rows["placemin/0"]
	if minRow.Status != domain.NodeStatusSuccess || minRow.Selected == nil || minRow.Selected.String() != "place/1" {
		t.Errorf("expected placemin to select place/1, got %+v", minRow)
	}
	if score := rows["place/0"].Score; score == nil || *score != 20 {
		t.Errorf("expected place/0 score 20, got %v", score)
	}

	store, err := manifest.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if status, _ := store.RunStatus("job0"); status != domain.RunStatusSucceeded {
		t.Errorf("expected job0 SUCCEEDED, got %s", status)
	}

	path, err := FindResult(store, "", domain.NodeID{Step: "route", Index: "0"}, "def")
	if err != nil {
		t.Fatalf("find result: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected result file to exist: %v", err)
	}
}

func TestRunCmd_Steplist(t *testing.T) {
	flow := writeFlow(t, ": > outputs/design.def")
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	workdir := filepath.Join(dir, "build")

	if _, err := runCmd(t, flow, "--manifest", manifestPath, "--workdir", workdir, "--quiet"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	stdout, err := runCmd(t, flow, "--manifest", manifestPath, "--workdir", workdir, "--quiet",
		"--steplist", "route", "--job", "rerun")
	if err != nil {
		t.Fatalf("steplist run failed: %v", err)
	}

	rows := decodeRows(t, stdout)
	if len(rows) != 1 {
		t.Fatalf("expected only route in summary, got %d rows", len(rows))
	}
	if rows["route/0"].Status != domain.NodeStatusSuccess {
		t.Errorf("expected route SUCCESS, got %s", rows["route/0"].Status)
	}

	store, err := manifest.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if jobs := store.Jobs(); len(jobs) != 2 || jobs[1] != "rerun" {
		t.Errorf("expected jobs [job0 rerun], got %v", jobs)
	}
}

func TestRunCmd_Fatal(t *testing.T) {
	flow := writeFlow(t, "echo ERROR: synthesis failed; exit 1")
	dir := t.TempDir()

	stdout, err := runCmd(t, flow,
		"--manifest", filepath.Join(dir, "manifest.json"),
		"--workdir", filepath.Join(dir, "build"),
		"--quiet",
	)

	var fatal *orchestrator.RunFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected RunFatalError, got %v", err)
	}

	rows := decodeRows(t, stdout)
	for _, node := range []string{"syn/0", "place/0", "placemin/0", "route/0"} {
		if rows[node].Status != domain.NodeStatusError {
			t.Errorf("expected %s ERROR, got %s", node, rows[node].Status)
		}
	}
}

func TestRunCmd_InvalidRequire(t *testing.T) {
	flow := writeFlow(t, ": > outputs/design.def")

	_, err := runCmd(t, flow, "--manifest", filepath.Join(t.TempDir(), "m.json"), "--require", "/0")
	if err == nil {
		t.Fatal("expected error for invalid --require")
	}
}

func TestResolveJob(t *testing.T) {
	store := manifest.New()
	for _, job := range []string{"job0", "job1"} {
		if err := store.AddJob(job); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		job     string
		want    string
		wantErr bool
	}{
		{"latest by default", "", "job1", false},
		{"explicit", "job0", "job0", false},
		{"unknown", "job9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveJob(store, tt.job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := resolveJob(manifest.New(), ""); err == nil {
		t.Error("expected error for manifest without jobs")
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runID := uuid.New()

	tests := []struct {
		name string
		msg  mq.Message
		want []string
	}{
		{
			name: "node",
			msg: mq.Message{
				Type: mq.MessageTypeNodeCompleted,
				Payload: mq.NodeCompletedPayload{
					RunID: runID, JobID: "job0", Step: "placemin", Index: "0",
					Tool: "minimum", Status: "SUCCESS", Selected: "place/1", DurationMs: 1500,
				},
				Timestamp: ts,
			},
			want: []string{"job0", "node placemin/0 minimum SUCCESS 1.5s", "selected=place/1"},
		},
		{
			name: "run",
			msg: mq.Message{
				Type: mq.MessageTypeRunCompleted,
				Payload: mq.RunCompletedPayload{
					RunID: runID, JobID: "job3", Flow: "asicflow", Status: "FAILED",
					Error: "required nodes not successful", DurationMs: 2000,
				},
				Timestamp: ts,
			},
			want: []string{"job3 run asicflow FAILED 2s", ": required nodes not successful"},
		},
		{
			name: "unknown type",
			msg:  mq.Message{Type: "other", Payload: "x", Timestamp: ts},
			want: []string{"other x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := FormatEvent(&tt.msg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, part := range tt.want {
				if !strings.Contains(line, part) {
					t.Errorf("expected %q in %q", part, line)
				}
			}
		})
	}
}

func TestOutput_Summary(t *testing.T) {
	score := 10.0
	sel := domain.NodeID{Step: "place", Index: "1"}
	rows := []orchestrator.SummaryRow{
		{Node: domain.NodeID{Step: "place", Index: "1"}, Tool: "openroad", Status: domain.NodeStatusSuccess,
			Metrics: map[string]float64{"area": 10, "errors": 0}, Score: &score, Duration: 1200 * time.Millisecond},
		{Node: domain.NodeID{Step: "placemin", Index: "0"}, Tool: "minimum", Status: domain.NodeStatusSuccess, Selected: &sel},
	}

	var buf bytes.Buffer
	NewOutputTo(false, &buf, io.Discard).Summary(rows)

	text := buf.String()
	for _, part := range []string{"NODE", "place/1", "area=10 errors=0", "1.2s", "placemin/0"} {
		if !strings.Contains(text, part) {
			t.Errorf("expected %q in table:\n%s", part, text)
		}
	}
}

func TestClient(t *testing.T) {
	store := manifest.New()
	place := domain.NodeID{Step: "place", Index: "0"}
	for _, err := range []error{
		store.AddJob("job0"),
		store.SetRunStatus("job0", domain.RunStatusSucceeded),
		store.SetNodeStatus("job0", place, domain.NodeStatusSuccess),
		store.SetOutput(place, "design.def", "/build/job0/place/0/outputs/design.def"),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := store.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Manifest: path,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL)

	jobs, err := client.ListJobs("")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != "SUCCEEDED" {
		t.Errorf("unexpected jobs %+v", jobs)
	}

	job, err := client.GetJob("job0", "")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if len(job.Nodes) != 1 || job.Nodes[0].Node.Step != "place" {
		t.Errorf("unexpected job %+v", job)
	}

	res, err := client.GetResult("job0", "place", "0", "def", "")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if res.Path != "/build/job0/place/0/outputs/design.def" {
		t.Errorf("unexpected path %s", res.Path)
	}

	if _, err := client.GetResult("job0", "route", "0", "def", ""); err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND error, got %v", err)
	}
	if _, err := client.ListRuns(ListRunsOpts{}); err == nil || !strings.Contains(err.Error(), "NOT_CONFIGURED") {
		t.Errorf("expected NOT_CONFIGURED error, got %v", err)
	}
}

func TestSummaryCmd(t *testing.T) {
	store := manifest.New()
	syn := domain.NodeID{Step: "syn", Index: "0"}
	for _, err := range []error{
		store.AddJob("job0"),
		store.AddJob("job1"),
		store.SetNodeStatus("job0", syn, domain.NodeStatusError),
		store.SetNodeStatus("job1", syn, domain.NodeStatusSuccess),
		store.SetMetric(syn, "cells", 1200),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := store.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		args   []string
		status domain.NodeStatus
	}{
		{"latest job", []string{path}, domain.NodeStatusSuccess},
		{"explicit job", []string{path, "--job", "job0"}, domain.NodeStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			cmd := NewSummaryCmd(func() *Output { return NewOutputTo(true, &stdout, io.Discard) })
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("summary failed: %v", err)
			}

			rows := decodeRows(t, &stdout)
			if rows["syn/0"].Status != tt.status {
				t.Errorf("expected %s, got %s", tt.status, rows["syn/0"].Status)
			}
		})
	}
}
