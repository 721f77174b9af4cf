package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/logging"
)

// StdinMarker tells the build engine to read the manifest from standard input.
const StdinMarker = "-"

// Request describes one external tool invocation.
type Request struct {
	Executable  string
	Flags       []string // fixed flags, first on the command line
	Args        []string // caller-supplied arguments
	Checkpoints []string
	Exports     []string
	// Payload, when non-nil, is sent as canonical JSON on stdin and the
	// stdin marker is appended to the arguments.
	Payload any
}

// Argv builds the argument vector: fixed flags, caller arguments, one
// --checkpoint per checkpoint, one --export per export, then the stdin
// marker when a payload is present.
func (r Request) Argv() []string {
	argv := make([]string, 0, len(r.Flags)+len(r.Args)+2*(len(r.Checkpoints)+len(r.Exports))+1)
	argv = append(argv, r.Flags...)
	argv = append(argv, r.Args...)
	for _, c := range r.Checkpoints {
		argv = append(argv, "--checkpoint", c)
	}
	for _, e := range r.Exports {
		argv = append(argv, "--export", e)
	}
	if r.Payload != nil {
		argv = append(argv, StdinMarker)
	}
	return argv
}

// Runner invokes external tools that speak JSON on stdout.
type Runner struct {
	Executor CommandExecutor
	// Subsystem tags log lines.
	Subsystem string
}

// NewRunner returns a Runner using executor, or a RealExecutor when nil.
func NewRunner(executor CommandExecutor, subsystem string) *Runner {
	if executor == nil {
		executor = &RealExecutor{}
	}
	return &Runner{Executor: executor, Subsystem: subsystem}
}

// Invoke runs the tool and returns its stdout decoded as one JSON document.
// Every failure is a *failure.Error: ExternalTool for spawn failures,
// nonzero exits and undecodable output; Timeout when ctx ends first.
func (r *Runner) Invoke(ctx context.Context, req Request) (any, error) {
	tool := filepath.Base(req.Executable)

	var stdin []byte
	if req.Payload != nil {
		data, err := Canonical(req.Payload)
		if err != nil {
			return nil, failure.Wrap(failure.ExternalTool, fmt.Sprintf("%s: %v", tool, err), err)
		}
		stdin = data
	}

	argv := req.Argv()
	logging.Debug(r.Subsystem, "exec %s %s (stdin %d bytes)", req.Executable, strings.Join(argv, " "), len(stdin))

	res, err := r.Executor.Execute(ctx, req.Executable, argv, stdin)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, failure.Wrap(failure.Timeout, fmt.Sprintf("%s: timed out", tool), err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, failure.Wrap(failure.Timeout, fmt.Sprintf("%s: canceled", tool), err)
		}
		return nil, failure.Wrap(failure.ExternalTool, err.Error(), err)
	}
	logging.Debug(r.Subsystem, "%s exited %d after %s", tool, res.ExitCode, res.Duration)

	if res.ExitCode != 0 {
		return nil, toolError(tool, res)
	}

	var doc any
	if err := json.Unmarshal(res.Stdout, &doc); err != nil {
		return nil, failure.Wrap(failure.ExternalTool, fmt.Sprintf("%s: unparsable output: %v", tool, err), err).
			WithDetail(rawOutput(res))
	}
	return doc, nil
}
