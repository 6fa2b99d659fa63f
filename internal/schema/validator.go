// Package schema provides JSON Schema validation with custom formats.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validator validates data against a JSON Schema.
type Validator struct {
	schemaLoader gojsonschema.JSONLoader
}

// NewValidator creates a validator from schema bytes.
// Make sure to call RegisterCustomFormats() before this.
func NewValidator(schemaData []byte) (*Validator, error) {
	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	return &Validator{schemaLoader: schemaLoader}, nil
}

// NewDefinitionValidator returns a validator for marker definitions.
func NewDefinitionValidator() (*Validator, error) {
	RegisterCustomFormats()
	return NewValidator([]byte(definitionSchema))
}

// NewFeedbackValidator returns a validator for observer feedback events.
func NewFeedbackValidator() (*Validator, error) {
	RegisterCustomFormats()
	return NewValidator([]byte(feedbackSchema))
}

// Validate validates a map[string]interface{} against the schema.
func (v *Validator) Validate(data map[string]interface{}) error {
	documentLoader := gojsonschema.NewGoLoader(data)
	result, err := gojsonschema.Validate(v.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// ValidateBytes validates raw JSON bytes.
func (v *Validator) ValidateBytes(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return v.Validate(obj)
}

// ValidateValue marshals any value and validates the result. Convenient for
// typed messages coming off the bus or out of the scene store.
func (v *Validator) ValidateValue(value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	return v.ValidateBytes(data)
}
