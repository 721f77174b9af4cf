package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// StageSchemas loads stage option schemas from a library directory.
// Lookups are cached and safe for concurrent use.
type StageSchemas struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*sjsonschema.Schema
}

// NewStageSchemas returns a loader rooted at libdir. An empty libdir
// disables stage option validation.
func NewStageSchemas(libdir string) *StageSchemas {
	return &StageSchemas{dir: libdir, cache: make(map[string]*sjsonschema.Schema)}
}

// Lookup returns the compiled schema for stage, or nil if the library has
// none.
func (s *StageSchemas) Lookup(stage string) (*sjsonschema.Schema, error) {
	if s == nil || s.dir == "" || stage == "" {
		return nil, nil
	}
	if !ValidStageType(stage) {
		return nil, fmt.Errorf("invalid stage type %q", stage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch, ok := s.cache[stage]; ok {
		return sch, nil
	}

	path := filepath.Join(s.dir, "schemas", stage+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.cache[stage] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stage schema %s: %w", path, err)
	}
	sch, err := CompileSchema(path, data)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", stage, err)
	}
	s.cache[stage] = sch
	return sch, nil
}

// ValidStageType reports whether stage can name a schema file in the
// library: it must not contain a path separator or "..".
func ValidStageType(stage string) bool {
	return !strings.ContainsAny(stage, `/\`) && !strings.Contains(stage, "..")
}

// validateStageOptions checks each stage's options against the library
// schema for its type.
func validateStageOptions(index FormatIndex, res *ValidationResult, stages []Stage, prefix string) error {
	for i, st := range stages {
		if !ValidStageType(st.Type) {
			res.add("stage", fmt.Sprintf("%s/%d/type", prefix, i), "invalid stage type %q", st.Type)
			continue
		}
		sch, err := index.StageSchema(st.Type)
		if err != nil {
			return err
		}
		if sch == nil {
			continue
		}
		opts := any(st.Options)
		if st.Options == nil {
			opts = map[string]any{}
		}
		path := fmt.Sprintf("%s/%d/options", prefix, i)
		for _, e := range SchemaErrors(sch, opts, "stage", path) {
			res.Errors = append(res.Errors, e)
			res.Valid = false
		}
	}
	return nil
}
