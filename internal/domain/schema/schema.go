package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// DefaultName is the name of the schema returned by Default.
const DefaultName = "document_relevance"

// Schema describes the structured object a generation call must return.
type Schema struct {
	name        string
	description string
	definition  json.RawMessage
	strict      bool
}

// New validates and creates a Schema.
// Name: ^[a-zA-Z0-9_-]{1,64}$. Definition: a JSON Schema object.
func New(name, description string, definition json.RawMessage, strict bool) (Schema, error) {
	if !nameRegex.MatchString(name) {
		return Schema{}, fmt.Errorf("schema name must be 1-64 alphanumeric, underscore or hyphen characters")
	}
	trimmed := bytes.TrimSpace(definition)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return Schema{}, fmt.Errorf("schema %q definition must be a JSON object", name)
	}
	def := make(json.RawMessage, len(trimmed))
	copy(def, trimmed)
	return Schema{name: name, description: description, definition: def, strict: strict}, nil
}

// FromDefinition builds a Schema from a typed JSON Schema definition.
func FromDefinition(name, description string, def jsonschema.Definition, strict bool) (Schema, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return Schema{}, fmt.Errorf("marshal schema %q: %w", name, err)
	}
	return New(name, description, raw, strict)
}

// Default returns the built-in relevance schema:
// {"relevant": string[], "irrelevant": boolean}.
func Default() Schema {
	s, err := FromDefinition(DefaultName,
		"Information from the source that is relevant to the user request.",
		jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"relevant": {
					Type:        jsonschema.Array,
					Description: "Facts or passages from the source that answer the request",
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
				"irrelevant": {
					Type:        jsonschema.Boolean,
					Description: "True when the source contains nothing relevant to the request",
				},
			},
			Required:             []string{"relevant", "irrelevant"},
			AdditionalProperties: false,
		},
		true,
	)
	if err != nil {
		panic(fmt.Sprintf("default schema: %v", err))
	}
	return s
}

// Name returns the schema name.
func (s Schema) Name() string { return s.name }

// Description returns the schema description.
func (s Schema) Description() string { return s.description }

// Definition returns the JSON Schema document.
func (s Schema) Definition() json.RawMessage { return s.definition }

// Strict reports whether the provider should enforce the schema exactly.
func (s Schema) Strict() bool { return s.strict }

// IsZero reports whether the schema was never initialized.
func (s Schema) IsZero() bool { return s.name == "" }
