package testcase

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/imgtest/pkg/manifest"
)

// Descriptor is the on-disk shape of a test case file.
type Descriptor struct {
	ID        string         `json:"id"                   jsonschema:"required,minLength=1"`
	Desc      map[string]any `json:"desc"                 jsonschema:"required"`
	Manifest  any            `json:"manifest"             jsonschema:"required"`
	ImageInfo any            `json:"image-info,omitempty"`
}

const descriptorSchemaID = "https://github.com/ormasoftchile/imgtest/schemas/test-descriptor.json"

// DescriptorSchema produces the JSON Schema for test descriptor files.
// Unknown top-level keys are allowed.
func DescriptorSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.RequiredFromJSONSchemaTags = true
	r.AllowAdditionalProperties = true

	s := r.Reflect(&Descriptor{})
	s.ID = descriptorSchemaID
	s.Title = "Image test descriptor"
	s.Description = "One test case: descriptor metadata, build manifest and expected image-info"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor schema: %w", err)
	}
	return data, nil
}

var descriptorSchema = manifest.LazySchema("test-descriptor.json", DescriptorSchema)

func compiledDescriptorSchema() (*sjsonschema.Schema, error) {
	return descriptorSchema()
}
