package promptdef

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// OutputSpec declares the JSON structure a prompt promises to emit.
// The schema compiles lazily on first use and is reused afterwards.
type OutputSpec struct {
	Schema map[string]any

	once       sync.Once
	compiled   *jsonschema.Schema
	compileErr error
}

// Validate checks candidate against the schema. A nil spec or empty
// schema accepts everything. A schema that fails to compile fails every
// validation with the compile error.
func (o *OutputSpec) Validate(candidate any) error {
	if o == nil || len(o.Schema) == 0 {
		return nil
	}
	o.once.Do(func() {
		o.compiled, o.compileErr = compileSchema(o.Schema)
	})
	if o.compileErr != nil {
		return o.compileErr
	}
	// Round-trip through JSON so YAML-decoded values carry the types
	// the validator expects.
	normalized, err := normalizeJSON(candidate)
	if err != nil {
		return fmt.Errorf("serialize candidate: %w", err)
	}
	return o.compiled.Validate(normalized)
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := normalizeJSON(schema)
	if err != nil {
		return nil, fmt.Errorf("serialize schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
