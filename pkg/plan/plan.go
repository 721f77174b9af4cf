// Package plan derives the export targets and checkpoints for a build from
// the pipeline graph of a manifest.
package plan

// Checkpointed pipeline names, in the order they are emitted.
const (
	BuildPipeline        = "build"
	OSTreeCommitPipeline = "ostree-commit"
)

var checkpointPolicy = []string{BuildPipeline, OSTreeCommitPipeline}

// Pipelines is the view of a manifest graph the planner needs: pipeline
// names in declaration order.
type Pipelines interface {
	Names() []string
}

// Plan lists the pipelines to export and to checkpoint for one build.
type Plan struct {
	Exports     []string `json:"exports"`
	Checkpoints []string `json:"checkpoints"`
}

// Derive computes the full plan for g.
func Derive(g Pipelines) Plan {
	return Plan{
		Exports:     DeriveExports(g),
		Checkpoints: DeriveCheckpoints(g),
	}
}

// DeriveExports returns the last pipeline in declaration order. Manifests
// with several terminal pipelines only ever export the last one. A graph
// without pipelines exports nothing.
func DeriveExports(g Pipelines) []string {
	names := g.Names()
	if len(names) == 0 {
		return []string{}
	}
	return []string{names[len(names)-1]}
}

// DeriveCheckpoints returns "build" and "ostree-commit", in that order, for
// those present in g. No other pipeline is checkpointed.
func DeriveCheckpoints(g Pipelines) []string {
	present := make(map[string]bool)
	for _, name := range g.Names() {
		present[name] = true
	}
	checkpoints := []string{}
	for _, name := range checkpointPolicy {
		if present[name] {
			checkpoints = append(checkpoints, name)
		}
	}
	return checkpoints
}
