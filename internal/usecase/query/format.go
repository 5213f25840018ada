package query

import (
	"encoding/json"
	"strings"

	"github.com/kailas-cloud/docquery/internal/domain/document"
)

const (
	sourceHeader   = "\n\n# Available source\n\n"
	noMetadataMark = "(none)"
)

// composeSystem appends the formatted document to the base system prompt.
func composeSystem(base string, doc document.Document) string {
	return base + sourceHeader + formatDocument(doc)
}

// formatDocument renders name, metadata and content as labelled sections.
// Metadata is serialized as JSON with sorted keys so the output is deterministic.
func formatDocument(doc document.Document) string {
	var b strings.Builder
	b.Grow(len(doc.Name) + len(doc.Content) + 64)

	b.WriteString("## Name\n")
	b.WriteString(doc.Name)
	b.WriteString("\n\n## Metadata\n")
	b.WriteString(formatMetadata(doc.Metadata))
	b.WriteString("\n\n## Content\n")
	b.WriteString(doc.Content)

	return b.String()
}

func formatMetadata(meta map[string]document.Value) string {
	if len(meta) == 0 {
		return noMetadataMark
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return noMetadataMark
	}
	return string(data)
}
