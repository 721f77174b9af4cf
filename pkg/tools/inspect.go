package tools

import "context"

// InspectInvoker runs the inspection tool on a built artifact.
type InspectInvoker struct {
	Runner     *Runner
	Executable string
}

// NewInspectInvoker returns an InspectInvoker for the tool at executable.
func NewInspectInvoker(executor CommandExecutor, executable string) *InspectInvoker {
	return &InspectInvoker{Runner: NewRunner(executor, "Inspect"), Executable: executable}
}

// Inspect passes target as the single positional argument and returns the
// decoded report.
func (i *InspectInvoker) Inspect(ctx context.Context, target string) (any, error) {
	return i.Runner.Invoke(ctx, Request{
		Executable: i.Executable,
		Args:       []string{target},
	})
}
