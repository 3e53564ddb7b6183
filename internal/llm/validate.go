package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The marksheet schema is static, so it is compiled once and shared by every
// extraction (strict pass and post-sanitize re-check alike).
var compileMarksheetSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BuildMarksheetJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal marksheet schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("marksheet.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add marksheet schema: %w", err)
	}
	schema, err := compiler.Compile("marksheet.json")
	if err != nil {
		return nil, fmt.Errorf("compile marksheet schema: %w", err)
	}
	return schema, nil
})

// ValidateMarksheetJSON validates a model response against the marksheet
// schema.
func ValidateMarksheetJSON(data []byte) error {
	schema, err := compileMarksheetSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal marksheet json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("marksheet json does not match schema: %w", err)
	}
	return nil
}
