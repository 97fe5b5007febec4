package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

// Schema validates encoded manifests.
type Schema struct {
	compiled *jsonschema.Schema
}

// LoadSchema compiles the embedded manifest schema.
func LoadSchema() (*Schema, error) {
	compiled, err := jsonschema.CompileString("manifest.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks m in its JSON form against the schema.
func (s *Schema) Validate(m *Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return s.ValidateJSON(raw)
}

// ValidateJSON checks an encoded manifest against the schema.
func (s *Schema) ValidateJSON(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	return s.compiled.Validate(doc)
}
