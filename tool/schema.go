package tool

import "github.com/sashabaranov/go-openai/jsonschema"

// SchemaForType generates a JSON-Schema definition for a Go type,
// grounded on the teacher's nodetypes/openai/structuredoutput.go use of
// jsonschema.GenerateSchemaForType for LLM structured-output response
// formats — reused here so tool authors can derive ParametersSchema /
// OutputSchema from a plain Go struct instead of hand-writing schema
// literals.
func SchemaForType(v any) (*jsonschema.Definition, error) {
	return jsonschema.GenerateSchemaForType(v)
}
