package manifest

import (
	"fmt"
	"strings"
)

// ManifestV2 is the version 2 document: a flat list of named pipelines.
type ManifestV2 struct {
	Version   string         `json:"version"           jsonschema:"required,enum=2"`
	Pipelines []PipelineV2   `json:"pipelines"         jsonschema:"required"`
	Sources   map[string]any `json:"sources,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PipelineV2 is a named pipeline. Build references another pipeline as
// "name:<pipeline>".
type PipelineV2 struct {
	Name        string    `json:"name"                   jsonschema:"required,minLength=1"`
	Build       string    `json:"build,omitempty"        jsonschema:"pattern=^name:.+$"`
	Runner      string    `json:"runner,omitempty"`
	SourceEpoch *int64    `json:"source-epoch,omitempty"`
	Stages      []StageV2 `json:"stages,omitempty"`
}

// StageV2 is a typed stage with inputs, devices and mounts.
type StageV2 struct {
	Type    string         `json:"type"              jsonschema:"required,minLength=1"`
	Inputs  map[string]any `json:"inputs,omitempty"`
	Options map[string]any `json:"options,omitempty"`
	Devices map[string]any `json:"devices,omitempty"`
	Mounts  []any          `json:"mounts,omitempty"`
}

const buildRefPrefix = "name:"

type v2Format struct {
	schema *compiledSchema
}

// V2 returns the version 2 format.
func V2() Format {
	f := &v2Format{}
	f.schema = &compiledSchema{resource: "manifest-v2.json", generate: f.Schema}
	return f
}

func (f *v2Format) Name() string { return "v2" }

func (f *v2Format) Matches(doc any) bool {
	m, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	v, ok := m["version"].(string)
	return ok && v == "2"
}

func (f *v2Format) Schema() ([]byte, error) {
	return GenerateSchema(&ManifestV2{},
		"https://github.com/ormasoftchile/imgtest/schemas/manifest-v2.json",
		"Build manifest: version 2",
		"Flat list of named pipelines with explicit build references")
}

func (f *v2Format) Validate(doc any, index FormatIndex) (*ValidationResult, error) {
	sch, err := f.schema.get()
	if err != nil {
		return nil, err
	}
	res := &ValidationResult{Valid: true}
	if errs := SchemaErrors(sch, doc, "schema", ""); len(errs) > 0 {
		res.Errors = errs
		res.Valid = false
		return res, nil
	}

	var m ManifestV2
	if err := decodeInto(doc, &m); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for i, p := range m.Pipelines {
		path := fmt.Sprintf("pipelines/%d", i)
		if seen[p.Name] {
			res.add("domain", path+"/name", "duplicate pipeline name %q", p.Name)
		}
		if p.Build != "" {
			ref := strings.TrimPrefix(p.Build, buildRefPrefix)
			if !seen[ref] {
				res.add("domain", path+"/build", "build pipeline %q must be declared before %q", ref, p.Name)
			}
		}
		seen[p.Name] = true
		if err := validateStageOptions(index, res, stagesV2(p.Stages), path+"/stages"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (f *v2Format) Load(doc any, index FormatIndex) (*Graph, error) {
	var m ManifestV2
	if err := decodeInto(doc, &m); err != nil {
		return nil, err
	}
	g := NewGraph(f.Name())
	for _, p := range m.Pipelines {
		err := g.Add(&Pipeline{
			Name:   p.Name,
			Build:  strings.TrimPrefix(p.Build, buildRefPrefix),
			Runner: p.Runner,
			Stages: stagesV2(p.Stages),
		})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

func stagesV2(in []StageV2) []Stage {
	out := make([]Stage, len(in))
	for i, s := range in {
		out[i] = Stage{Type: s.Type, Options: s.Options}
	}
	return out
}
