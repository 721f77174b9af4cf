package manifest

import (
	"encoding/json"
	"fmt"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase   string `json:"phase"` // schema, domain, stage
	Path    string `json:"path"`  // JSON-pointer-like location (e.g. "pipelines/0/stages/1")
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidationResult is returned by Format.Validate.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

func (r *ValidationResult) add(phase, path, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

// FormatIndex detects manifest formats and resolves stage option schemas.
type FormatIndex interface {
	// Detect returns the format that claims doc, or nil if none does.
	Detect(doc any) Format
	// StageSchema returns the options schema for a stage type, or nil when
	// no schema is known for it.
	StageSchema(stage string) (*sjsonschema.Schema, error)
}

// Format is one versioned manifest schema.
type Format interface {
	Name() string
	// Matches reports whether doc declares this format's version.
	Matches(doc any) bool
	// Validate checks doc against the format schema and domain rules.
	// A non-nil error means validation itself could not run.
	Validate(doc any, index FormatIndex) (*ValidationResult, error)
	// Load converts a valid doc into a pipeline graph.
	Load(doc any, index FormatIndex) (*Graph, error)
	// Schema returns the JSON Schema document for the format.
	Schema() ([]byte, error)
}

// Index is the built-in FormatIndex with the v1 and v2 formats.
type Index struct {
	formats []Format
	stages  *StageSchemas
}

// NewIndex creates an index. libdir, when non-empty, is searched for stage
// option schemas under libdir/schemas/<stage>.json.
func NewIndex(libdir string) *Index {
	return &Index{
		formats: []Format{V2(), V1()},
		stages:  NewStageSchemas(libdir),
	}
}

// Detect returns the first format matching doc.
func (i *Index) Detect(doc any) Format {
	for _, f := range i.formats {
		if f.Matches(doc) {
			return f
		}
	}
	return nil
}

// Formats returns the registered formats.
func (i *Index) Formats() []Format {
	return append([]Format(nil), i.formats...)
}

// Lookup returns the format with the given name.
func (i *Index) Lookup(name string) (Format, bool) {
	for _, f := range i.formats {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// StageSchema implements FormatIndex.
func (i *Index) StageSchema(stage string) (*sjsonschema.Schema, error) {
	return i.stages.Lookup(stage)
}

// decodeInto converts a generic JSON document into a typed value.
func decodeInto(doc any, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	return nil
}
