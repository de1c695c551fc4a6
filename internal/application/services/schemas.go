package services

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

const notePayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "subjective": {"type": "string"},
    "objective": {"type": "string"},
    "assessment": {"type": "string"},
    "plan": {"type": "string"},
    "entities": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    }
  },
  "anyOf": [
    {"required": ["subjective"]},
    {"required": ["objective"]},
    {"required": ["assessment"]},
    {"required": ["plan"]}
  ]
}`

const annotationListSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "term": {"type": "string", "minLength": 1},
      "start": {"type": "integer"},
      "end": {"type": "integer"},
      "definition": {"type": "string"}
    },
    "required": ["term", "start", "end"]
  }
}`

var (
	noteSchema       = mustCompileSchema(notePayloadSchema)
	annotationSchema = mustCompileSchema(annotationListSchema)
)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// validateSchema reports the first validation failure of data against schema.
func validateSchema(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
