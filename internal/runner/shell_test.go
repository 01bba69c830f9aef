package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunEchoHello(t *testing.T) {
	r := RunContext(context.Background(), "echo hello", "", 0)
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if strings.TrimSpace(r.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", r.Stdout)
	}
}

func TestRunCaptureStderr(t *testing.T) {
	r := RunContext(context.Background(), "echo error >&2", "", 0)
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if strings.TrimSpace(r.Stderr) != "error" {
		t.Errorf("expected stderr 'error', got %q", r.Stderr)
	}
}

func TestRunNonZeroExitCode(t *testing.T) {
	r := RunContext(context.Background(), "exit 42", "", 0)
	if r.ExitCode != 42 {
		t.Errorf("expected exit code 42, got %d", r.ExitCode)
	}
}

func TestRunPipesWork(t *testing.T) {
	r := RunContext(context.Background(), "echo hello world | wc -w", "", 0)
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if strings.TrimSpace(r.Stdout) != "2" {
		t.Errorf("expected stdout '2', got %q", strings.TrimSpace(r.Stdout))
	}
}

func TestRunMultiLineStdout(t *testing.T) {
	r := RunContext(context.Background(), "printf 'line1\nline2\nline3'", "", 0)
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	lines := strings.Split(r.Stdout, "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d: %q", len(lines), r.Stdout)
	}
}

func TestRunContextTimeout(t *testing.T) {
	start := time.Now()
	r := RunContext(context.Background(), "sleep 5", "", 100*time.Millisecond)
	if !r.TimedOut {
		t.Fatalf("expected timeout, got exit code %d", r.ExitCode)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("command was not killed on timeout")
	}
}

func TestRunContextWorkDir(t *testing.T) {
	dir := t.TempDir()
	r := RunContext(context.Background(), "pwd", dir, time.Second)
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if !strings.HasSuffix(strings.TrimSpace(r.Stdout), filepath.Base(dir)) {
		t.Errorf("expected pwd in %s, got %q", dir, r.Stdout)
	}
}

func TestExecMissingProgram(t *testing.T) {
	r := Exec(context.Background(), "definitely-not-a-real-program-xyz")
	if r.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", r.ExitCode)
	}
	if r.Stderr == "" {
		t.Error("expected start error in stderr")
	}
}

func TestOutputNonZeroExit(t *testing.T) {
	_, err := Output(context.Background(), "sh", "-c", "echo bad >&2; exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("expected code 3, got %d", exitErr.Code)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("expected stderr in error, got %q", err.Error())
	}
}

func TestOutputArgsNotShellExpanded(t *testing.T) {
	out, err := Output(context.Background(), "echo", "$HOME")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "$HOME" {
		t.Errorf("expected literal $HOME, got %q", out)
	}
}

func TestStartDetachedDoesNotWait(t *testing.T) {
	start := time.Now()
	if err := StartDetached("sleep", "2"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > time.Second {
		t.Error("StartDetached blocked on the child")
	}
}

func TestStartDetachedMissingProgram(t *testing.T) {
	if err := StartDetached("definitely-not-a-real-program-xyz"); err == nil {
		t.Error("expected error for missing program")
	}
}

func TestAvailable(t *testing.T) {
	if !Available("sh") {
		t.Error("expected sh on PATH")
	}
	if Available("definitely-not-a-real-program-xyz") {
		t.Error("expected missing program to be unavailable")
	}
}
