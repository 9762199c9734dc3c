package interfaces

import "context"

// GenerateOptions tunes a single provider call
type GenerateOptions struct {
	Temperature float32
	// SchemaName labels the structured output in logs
	SchemaName string
}

// TextProvider is the language-generation capability.
// Both calls may fail or return malformed output; callers decide how to recover.
type TextProvider interface {
	GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateJSON asks for output matching schema and returns the decoded value
	// (a []interface{} or map[string]interface{}).
	GenerateJSON(ctx context.Context, prompt string, schema map[string]interface{}, opts GenerateOptions) (interface{}, error)
}
