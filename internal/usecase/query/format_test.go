package query

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/docquery/internal/domain/document"
)

func TestFormatDocument(t *testing.T) {
	d := document.Document{
		Name:    "report.pdf",
		Content: "Quarterly revenue grew.",
		Metadata: map[string]document.Value{
			"year": document.Number(2024),
			"lang": document.String("en"),
		},
	}

	want := "## Name\nreport.pdf\n\n" +
		"## Metadata\n{\"lang\":\"en\",\"year\":2024}\n\n" +
		"## Content\nQuarterly revenue grew."

	if got := formatDocument(d); got != want {
		t.Errorf("formatDocument() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatDocument_NoMetadata(t *testing.T) {
	for _, meta := range []map[string]document.Value{nil, {}} {
		got := formatDocument(document.Document{Name: "a", Content: "b", Metadata: meta})
		if !strings.Contains(got, "## Metadata\n(none)\n") {
			t.Errorf("missing empty-metadata marker:\n%s", got)
		}
	}
}

func TestFormatDocument_Deterministic(t *testing.T) {
	meta := map[string]document.Value{}
	for _, k := range []string{"z", "a", "m", "b", "y"} {
		meta[k] = document.String(k)
	}
	d := document.Document{Name: "n", Content: "c", Metadata: meta}
	first := formatDocument(d)
	for range 20 {
		if formatDocument(d) != first {
			t.Fatal("formatDocument is not deterministic")
		}
	}
}

func TestComposeSystem(t *testing.T) {
	d := document.Document{Name: "a", Content: "b"}
	got := composeSystem("You are helpful.", d)
	want := "You are helpful.\n\n# Available source\n\n" + formatDocument(d)
	if got != want {
		t.Errorf("composeSystem() = %q, want %q", got, want)
	}
}
