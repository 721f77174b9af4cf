// Package tools invokes the external build engine and inspection tool:
// argument construction, canonical JSON on stdin, JSON on stdout, and
// classification of tool failures.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts process spawning. Implementations: RealExecutor,
// and in-memory fakes in tests.
type CommandExecutor interface {
	// Execute runs command to completion. stdin, when non-nil, is delivered
	// as the process input. A nonzero exit status is reported through
	// CommandResult.ExitCode, not as an error.
	Execute(ctx context.Context, command string, args []string, stdin []byte) (*CommandResult, error)
}

// DefaultWaitDelay bounds how long output pipes are drained after the
// child has been killed.
const DefaultWaitDelay = 5 * time.Second

// RealExecutor runs commands via os/exec. Cancelling the context kills the
// child process.
type RealExecutor struct {
	WaitDelay time.Duration
}

// Execute implements CommandExecutor.
func (r *RealExecutor) Execute(ctx context.Context, command string, args []string, stdin []byte) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("execute %q: %w", command, ctxErr)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("execute %q: %w", command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}
