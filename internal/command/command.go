// Package command wraps os/exec for collectors that sample metrics from
// external programs.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
)

// Result holds the outcome of executing an external command.
type Result struct {
	// Stdout contains the standard output captured from the command.
	Stdout string
	// Stderr contains the standard error captured from the command.
	Stderr string
	// ExitCode is the exit status code returned by the command. A value of
	// -1 indicates the command could not be started or was terminated before
	// completing (command not found, context cancelled).
	ExitCode int
	// Error is any error encountered while running the command itself. A
	// non-zero exit code alone does not populate it; callers check ExitCode.
	Error error
}

// Runner defines the interface for running external commands.
type Runner interface {
	// Run executes the command with the given arguments, working directory,
	// and environment. It respects the provided context for cancellation.
	Run(ctx context.Context, command string, args []string, workingDir string, environment []string) (*Result, error)
}

type defaultRunner struct{}

// NewRunner creates a new instance of the default os/exec-backed runner.
func NewRunner() Runner {
	return &defaultRunner{}
}

func (r *defaultRunner) Run(ctx context.Context, command string, args []string, workingDir string, environment []string) (*Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if workingDir != "" {
		cmd.Dir = workingDir
	}
	if len(environment) > 0 {
		// Setting cmd.Env replaces the inherited environment entirely.
		cmd.Env = environment
	}

	result := &Result{
		ExitCode: -1,
	}

	err := cmd.Run()

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if err != nil {
		if ctx.Err() != nil {
			result.Error = ctx.Err()
			return result, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The command ran but exited non-zero. That is not a run error;
			// the caller inspects ExitCode.
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			}
			result.Error = err
			return result, nil
		}

		result.Error = err
		return result, err
	}

	result.ExitCode = 0
	return result, nil
}
