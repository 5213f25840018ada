package document

import "fmt"

// Document is a named unit of text content plus optional metadata.
// The query pipeline only reads documents and carries them through to results.
type Document struct {
	Name     string           `json:"name"`
	Content  string           `json:"content"`
	Metadata map[string]Value `json:"metadata,omitempty"`
}

// New creates a Document. Metadata is copied so later caller mutations do not leak in.
func New(name, content string, metadata map[string]Value) (Document, error) {
	if name == "" {
		return Document{}, fmt.Errorf("document name is required")
	}
	return Document{Name: name, Content: content, Metadata: cloneMetadata(metadata)}, nil
}

// Lookup returns the metadata value stored under key.
func (d Document) Lookup(key string) (Value, bool) {
	v, ok := d.Metadata[key]
	return v, ok
}

func cloneMetadata(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	c := make(map[string]Value, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
