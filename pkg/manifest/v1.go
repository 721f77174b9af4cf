package manifest

import "fmt"

// ManifestV1 is the version 1 document: a single pipeline with an optional
// chain of nested build pipelines and an optional assembler.
type ManifestV1 struct {
	Pipeline PipelineV1     `json:"pipeline"          jsonschema:"required"`
	Sources  map[string]any `json:"sources,omitempty"`
}

// PipelineV1 is a version 1 pipeline.
type PipelineV1 struct {
	Build     *BuildV1  `json:"build,omitempty"`
	Stages    []StageV1 `json:"stages,omitempty"`
	Assembler *StageV1  `json:"assembler,omitempty"`
}

// BuildV1 wraps the pipeline that provides the build environment.
type BuildV1 struct {
	Pipeline PipelineV1 `json:"pipeline" jsonschema:"required"`
	Runner   string     `json:"runner"   jsonschema:"required"`
}

// StageV1 is a named stage or assembler.
type StageV1 struct {
	Name    string         `json:"name"              jsonschema:"required,minLength=1"`
	Options map[string]any `json:"options,omitempty"`
}

// Pipeline names produced when loading a version 1 manifest.
const (
	V1BuildPipeline     = "build"
	V1TreePipeline      = "tree"
	V1AssemblerPipeline = "assembler"
)

type v1Format struct {
	schema *compiledSchema
}

// V1 returns the version 1 format.
func V1() Format {
	f := &v1Format{}
	f.schema = &compiledSchema{resource: "manifest-v1.json", generate: f.Schema}
	return f
}

func (f *v1Format) Name() string { return "v1" }

// Matches claims any object without a version field.
func (f *v1Format) Matches(doc any) bool {
	m, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	_, versioned := m["version"]
	return !versioned
}

func (f *v1Format) Schema() ([]byte, error) {
	return GenerateSchema(&ManifestV1{},
		"https://github.com/ormasoftchile/imgtest/schemas/manifest-v1.json",
		"Build manifest: version 1",
		"Single pipeline with nested build pipelines and an assembler")
}

func (f *v1Format) Validate(doc any, index FormatIndex) (*ValidationResult, error) {
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

	var m ManifestV1
	if err := decodeInto(doc, &m); err != nil {
		return nil, err
	}
	path := "pipeline"
	for p := &m.Pipeline; p != nil; {
		if err := validateStageOptions(index, res, stagesV1(p.Stages), path+"/stages"); err != nil {
			return nil, err
		}
		if p.Assembler != nil {
			if err := validateStageOptions(index, res, stagesV1([]StageV1{*p.Assembler}), path+"/assembler"); err != nil {
				return nil, err
			}
		}
		if p.Build == nil {
			break
		}
		path += "/build/pipeline"
		p = &p.Build.Pipeline
	}
	return res, nil
}

// Load flattens the nested build chain. The outermost build pipeline is
// named "build", each deeper level appends ".build"; deeper levels are
// declared first so every build reference points backwards.
func (f *v1Format) Load(doc any, index FormatIndex) (*Graph, error) {
	var m ManifestV1
	if err := decodeInto(doc, &m); err != nil {
		return nil, err
	}
	g := NewGraph(f.Name())
	build, runner, err := addV1Build(g, m.Pipeline.Build, V1BuildPipeline)
	if err != nil {
		return nil, err
	}
	tree := &Pipeline{Name: V1TreePipeline, Build: build, Runner: runner, Stages: stagesV1(m.Pipeline.Stages)}
	if err := g.Add(tree); err != nil {
		return nil, err
	}
	if m.Pipeline.Assembler != nil {
		asm := &Pipeline{
			Name:   V1AssemblerPipeline,
			Build:  build,
			Runner: runner,
			Stages: stagesV1([]StageV1{*m.Pipeline.Assembler}),
		}
		if err := g.Add(asm); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func addV1Build(g *Graph, b *BuildV1, name string) (string, string, error) {
	if b == nil {
		return "", "", nil
	}
	inner, innerRunner, err := addV1Build(g, b.Pipeline.Build, name+"."+V1BuildPipeline)
	if err != nil {
		return "", "", err
	}
	p := &Pipeline{Name: name, Build: inner, Runner: innerRunner, Stages: stagesV1(b.Pipeline.Stages)}
	if err := g.Add(p); err != nil {
		return "", "", fmt.Errorf("build pipeline: %w", err)
	}
	return name, b.Runner, nil
}

func stagesV1(in []StageV1) []Stage {
	out := make([]Stage, len(in))
	for i, s := range in {
		out[i] = Stage{Type: s.Name, Options: s.Options}
	}
	return out
}
