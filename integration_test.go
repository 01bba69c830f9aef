package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stevehiehn/deskagent/internal/desktop"
	"github.com/stevehiehn/deskagent/internal/engine"
	"github.com/stevehiehn/deskagent/internal/plan"
	"github.com/stevehiehn/deskagent/internal/tools"
)

// headlessRegistry returns the built-in tools without a desktop backend, so
// file and shell tools work while input and screen tools fail.
func headlessRegistry(t *testing.T, allowed ...string) *tools.Registry {
	t.Helper()
	policy := tools.DefaultPolicy()
	policy.AllowedPaths = allowed
	return tools.Builtin(desktop.Unsupported{Platform: "plan9"}, policy)
}

func writeWorkflow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runWorkflowFile(t *testing.T, reg *tools.Registry, path string, inputs map[string]string) *engine.Report {
	t.Helper()
	w, err := plan.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := plan.Validate(w, reg, inputs); err != nil {
		t.Fatalf("validate: %v", err)
	}
	steps, err := w.ResolvedSteps(inputs)
	if err != nil {
		t.Fatal(err)
	}
	return engine.New(reg).Run(context.Background(), steps)
}

func payload(t *testing.T, r engine.StepResult) map[string]any {
	t.Helper()
	m, ok := r.Payload.(map[string]any)
	if !ok {
		t.Fatalf("step %d payload is %T", r.Index, r.Payload)
	}
	return m
}

func TestFileWorkflowE2E(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "notes", "hello.txt")
	path := writeWorkflow(t, dir, "wf.yaml", `
name: files
inputs:
  target: {required: true}
  body: {default: "hello from a workflow"}
steps:
  - tool: write_file
    description: write the note
    args:
      path: "${{inputs.target}}"
      content: "${{inputs.body}}"
  - tool: read_file
    args: {path: "${{inputs.target}}"}
  - tool: list_files
    args: {path: "`+filepath.Join(dir, "notes")+`"}
`)
	report := runWorkflowFile(t, headlessRegistry(t, dir), path, map[string]string{"target": target})

	if !report.Succeeded {
		t.Fatalf("expected success, got error %q", report.ErrorMessage())
	}
	if report.StepCount != 3 || report.CompletedCount != 3 {
		t.Fatalf("counts = %d/%d", report.CompletedCount, report.StepCount)
	}
	if report.Results[0].Description != "write the note" || report.Results[1].Description != "Step 2" {
		t.Errorf("unexpected descriptions %q, %q", report.Results[0].Description, report.Results[1].Description)
	}
	if got := payload(t, report.Results[1])["content"]; got != "hello from a workflow" {
		t.Errorf("read_file content = %v", got)
	}
	items := payload(t, report.Results[2])["items"].([]map[string]any)
	if len(items) != 1 || items[0]["name"] != "hello.txt" {
		t.Errorf("list_files items = %v", items)
	}
}

func TestCommandWorkflowE2E(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "wf.yaml", `
name: shell
steps:
  - tool: execute_command
    args: {command: "echo hello world"}
  - tool: execute_command
    args: {command: "exit 3"}
`)
	report := runWorkflowFile(t, headlessRegistry(t), path, nil)
	if !report.Succeeded {
		t.Fatalf("expected success, got %q", report.ErrorMessage())
	}
	if got := payload(t, report.Results[0])["stdout"]; got != "hello world\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := payload(t, report.Results[1])["exit_code"]; got != 3 {
		t.Errorf("exit_code = %v, non-zero exits are reported, not failed", got)
	}
}

func TestPolicyViolationHaltsE2E(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	marker := filepath.Join(allowed, "never.txt")
	path := writeWorkflow(t, allowed, "wf.yaml", `
name: escape
steps:
  - tool: write_file
    args: {path: "`+filepath.Join(outside, "x.txt")+`", content: "nope"}
  - tool: write_file
    args: {path: "`+marker+`", content: "unreachable"}
`)
	report := runWorkflowFile(t, headlessRegistry(t, allowed), path, nil)

	if report.Succeeded {
		t.Fatal("expected failure")
	}
	if report.HaltedAtIndex == nil || *report.HaltedAtIndex != 0 {
		t.Fatalf("halted_at_index = %v", report.HaltedAtIndex)
	}
	if len(report.Results) != 1 {
		t.Errorf("later steps must not be recorded, got %d results", len(report.Results))
	}
	if !strings.Contains(report.ErrorMessage(), "path not allowed") {
		t.Errorf("error = %q", report.ErrorMessage())
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("second step ran after the halt")
	}
	if _, err := os.Stat(filepath.Join(outside, "x.txt")); !os.IsNotExist(err) {
		t.Error("file outside allowed paths was written")
	}
}

func TestContinueOnErrorWithoutDesktopE2E(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "after.txt")
	path := writeWorkflow(t, dir, "wf.yaml", `
name: headless
steps:
  - tool: click
    args: {x: 10, y: 20}
    continue_on_error: true
  - tool: write_file
    args: {path: "`+marker+`", content: "ran"}
`)
	report := runWorkflowFile(t, headlessRegistry(t, dir), path, nil)

	if !report.Succeeded {
		t.Fatalf("expected success, got %q", report.ErrorMessage())
	}
	if report.CompletedCount != 1 {
		t.Errorf("completed_count = %d, want 1", report.CompletedCount)
	}
	first := report.Results[0]
	if first.Succeeded || first.Error == nil || !strings.Contains(*first.Error, "not supported") {
		t.Errorf("click result = %+v", first)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("second step did not run: %v", err)
	}
}

func TestWaitAfterDelaysNextStepE2E(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "wf.yaml", `
name: delay
steps:
  - tool: list_files
    args: {path: "`+dir+`"}
    wait_after_ms: 150
  - tool: list_files
    args: {path: "`+dir+`"}
`)
	start := time.Now()
	report := runWorkflowFile(t, headlessRegistry(t), path, nil)
	if !report.Succeeded {
		t.Fatalf("expected success, got %q", report.ErrorMessage())
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("run took %v, expected at least 150ms", elapsed)
	}
}

func TestValidationRejectsUnknownToolE2E(t *testing.T) {
	dir := t.TempDir()
	w, err := plan.LoadFile(writeWorkflow(t, dir, "wf.yaml", "name: bad\nsteps:\n  - tool: teleport\n"))
	if err != nil {
		t.Fatal(err)
	}
	err = plan.Validate(w, headlessRegistry(t), nil)
	if err == nil || !strings.Contains(err.Error(), "Unknown tool: teleport") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestEngineReportsUnknownToolE2E(t *testing.T) {
	report := engine.New(headlessRegistry(t)).Run(context.Background(), []any{
		map[string]any{"tool": "teleport"},
	})
	if report.Succeeded || report.ErrorMessage() != "Unknown tool: teleport" {
		t.Fatalf("report = %+v", report)
	}
}
