package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ProcessResult is the captured outcome of one external process.
type ProcessResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// ProcessRunner runs an external command in dir. A non-zero exit is reported
// through ProcessResult.ExitCode, not as an error.
type ProcessRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (ProcessResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements ProcessRunner.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (ProcessResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ProcessResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("run %s: %w", name, err)
	}
}
