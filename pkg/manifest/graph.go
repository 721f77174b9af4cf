// Package manifest models build manifests as an ordered graph of named
// pipelines and provides the format index that detects, validates and loads
// the supported manifest versions.
package manifest

import "fmt"

// Stage is a single build step inside a pipeline.
type Stage struct {
	Type    string
	Options map[string]any
}

// Pipeline is a named, ordered sequence of stages. Build names the pipeline
// whose tree provides the build environment, if any.
type Pipeline struct {
	Name   string
	Build  string
	Runner string
	Stages []Stage
}

// Graph is the abstract manifest: pipelines in declaration order with
// unique names.
type Graph struct {
	Format    string
	pipelines []*Pipeline
	byName    map[string]*Pipeline
}

// NewGraph returns an empty graph for the named format.
func NewGraph(format string) *Graph {
	return &Graph{Format: format, byName: make(map[string]*Pipeline)}
}

// Add appends p. Names must be non-empty and unique within the graph.
func (g *Graph) Add(p *Pipeline) error {
	if p.Name == "" {
		return fmt.Errorf("pipeline at position %d has no name", len(g.pipelines))
	}
	if _, dup := g.byName[p.Name]; dup {
		return fmt.Errorf("duplicate pipeline name %q", p.Name)
	}
	if p.Build != "" {
		if _, ok := g.byName[p.Build]; !ok {
			return fmt.Errorf("pipeline %q references unknown build pipeline %q", p.Name, p.Build)
		}
	}
	g.pipelines = append(g.pipelines, p)
	g.byName[p.Name] = p
	return nil
}

// Get returns the pipeline with the given name.
func (g *Graph) Get(name string) (*Pipeline, bool) {
	p, ok := g.byName[name]
	return p, ok
}

// Has reports whether a pipeline with the given name exists.
func (g *Graph) Has(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// Pipelines returns the pipelines in declaration order.
func (g *Graph) Pipelines() []*Pipeline {
	out := make([]*Pipeline, len(g.pipelines))
	copy(out, g.pipelines)
	return out
}

// Names returns the pipeline names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.pipelines))
	for i, p := range g.pipelines {
		names[i] = p.Name
	}
	return names
}

// Len returns the number of pipelines.
func (g *Graph) Len() int {
	return len(g.pipelines)
}
