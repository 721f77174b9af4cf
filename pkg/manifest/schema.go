package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// GenerateSchema produces a JSON Schema Draft 2020-12 document for v using
// invopop/jsonschema. Required fields are taken from jsonschema tags.
func GenerateSchema(v any, id, title, description string) ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.RequiredFromJSONSchemaTags = true

	s := r.Reflect(v)
	s.ID = jsonschema.ID(id)
	s.Title = title
	s.Description = description

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// CompileSchema compiles a schema document under the given resource name.
func CompileSchema(resource string, schemaJSON []byte) (*sjsonschema.Schema, error) {
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// compiledSchema lazily generates and compiles a schema once.
type compiledSchema struct {
	once     sync.Once
	resource string
	generate func() ([]byte, error)
	schema   *sjsonschema.Schema
	err      error
}

func (c *compiledSchema) get() (*sjsonschema.Schema, error) {
	c.once.Do(func() {
		data, err := c.generate()
		if err != nil {
			c.err = err
			return
		}
		c.schema, c.err = CompileSchema(c.resource, data)
	})
	return c.schema, c.err
}

// LazySchema returns a function that generates and compiles a schema on
// first use and returns the cached result afterwards.
func LazySchema(resource string, generate func() ([]byte, error)) func() (*sjsonschema.Schema, error) {
	c := &compiledSchema{resource: resource, generate: generate}
	return c.get
}

// SchemaErrors validates doc against sch and flattens the failures into
// ValidationErrors of the given phase. prefix is prepended to instance paths.
func SchemaErrors(sch *sjsonschema.Schema, doc any, phase, prefix string) []*ValidationError {
	err := sch.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return []*ValidationError{{Phase: phase, Path: prefix, Message: err.Error()}}
	}
	var errs []*ValidationError
	for _, cause := range flattenValidationErrors(ve) {
		path := strings.Join(cause.InstanceLocation, "/")
		if prefix != "" {
			path = strings.TrimSuffix(prefix+"/"+path, "/")
		}
		errs = append(errs, &ValidationError{
			Phase:   phase,
			Path:    path,
			Message: cause.ErrorKind.LocalizedString(printer),
		})
	}
	return errs
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
