package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed function_list.schema.json
var functionListSchema []byte

const functionListSchemaURL = "https://github.com/panbanda/fuzzlens/schema/function_list.schema.json"

var compileFunctionListSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(functionListSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(functionListSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(functionListSchemaURL)
})

// validateFunctionList checks the shape of a YAML function list before it
// is decoded into records. Required keys are checked by the profile
// constructors so that they report ErrMissingKey.
func validateFunctionList(data []byte) error {
	sch, err := compileFunctionListSchema()
	if err != nil {
		return fmt.Errorf("function list schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	// Round-trip through JSON so the instance holds the value types the
	// validator expects.
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
