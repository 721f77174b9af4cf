package tools

import (
	"context"
	"fmt"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/plan"
)

// BuildInvoker runs the build engine on a manifest.
type BuildInvoker struct {
	Runner     *Runner
	Executable string
	Store      string
	Libdir     string
}

// NewBuildInvoker returns a BuildInvoker for the engine at executable.
func NewBuildInvoker(executor CommandExecutor, executable, store, libdir string) *BuildInvoker {
	return &BuildInvoker{
		Runner:     NewRunner(executor, "Build"),
		Executable: executable,
		Store:      store,
		Libdir:     libdir,
	}
}

// Flags returns the fixed flags passed on every build.
func (b *BuildInvoker) Flags(outputDir string) []string {
	flags := []string{"--store", b.Store, "--output-dir", outputDir, "--json"}
	if b.Libdir != "" {
		flags = append(flags, "--libdir", b.Libdir)
	}
	return flags
}

// Build sends manifest on stdin with the plan's checkpoints and exports and
// returns the engine's JSON result object.
func (b *BuildInvoker) Build(ctx context.Context, manifest any, outputDir string, p plan.Plan) (map[string]any, error) {
	doc, err := b.Runner.Invoke(ctx, Request{
		Executable:  b.Executable,
		Flags:       b.Flags(outputDir),
		Checkpoints: p.Checkpoints,
		Exports:     p.Exports,
		Payload:     manifest,
	})
	if err != nil {
		return nil, err
	}
	result, ok := doc.(map[string]any)
	if !ok {
		return nil, failure.Newf(failure.ExternalTool, "build engine returned %T, want a JSON object", doc)
	}
	return result, nil
}

// String describes the invoker for logs.
func (b *BuildInvoker) String() string {
	return fmt.Sprintf("build engine %s (store %s)", b.Executable, b.Store)
}
