package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ShellResult holds the output of a command.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// RunContext executes command via the platform shell. A positive timeout
// bounds the run; on expiry the process is killed and TimedOut is set.
func RunContext(ctx context.Context, command, workDir string, timeout time.Duration) *ShellResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	name, args := shell(command)
	cmd := exec.CommandContext(ctx, name, args...)
	// Children of the shell can keep the output pipes open after it is
	// killed.
	cmd.WaitDelay = time.Second
	if workDir != "" {
		cmd.Dir = workDir
	}
	res := capture(cmd)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}
	return res
}

// Exec runs a program directly, without a shell, and captures output. A
// program that cannot be started reports exit code -1 and the start error
// in Stderr.
func Exec(ctx context.Context, name string, args ...string) *ShellResult {
	return capture(exec.CommandContext(ctx, name, args...))
}

// Output runs a program and returns its stdout, or an error carrying stderr
// when it exits non-zero.
func Output(ctx context.Context, name string, args ...string) (string, error) {
	res := Exec(ctx, name, args...)
	if res.ExitCode != 0 {
		return res.Stdout, &ExitError{Name: name, Code: res.ExitCode, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

// StartDetached launches a program without waiting for it to exit.
func StartDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// StartDetachedShell launches command through the platform shell without
// waiting for it.
func StartDetachedShell(command string) error {
	name, args := shell(command)
	return StartDetached(name, args...)
}

// Available reports whether a program is on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ExitError reports a non-zero exit from Output.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := e.Name + " exited with code " + strconv.Itoa(e.Code)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func shell(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}

func capture(cmd *exec.Cmd) *ShellResult {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if stderr.Len() == 0 {
				stderr.WriteString(err.Error())
			}
		}
	}

	return &ShellResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}
