package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	s, err := New("answer", "an answer", json.RawMessage(` {"type":"object"} `), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "answer" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Description() != "an answer" {
		t.Errorf("Description() = %q", s.Description())
	}
	if string(s.Definition()) != `{"type":"object"}` {
		t.Errorf("Definition() = %s", s.Definition())
	}
	if !s.Strict() {
		t.Error("Strict() = false")
	}
	if s.IsZero() {
		t.Error("IsZero() = true for initialized schema")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		sname   string
		def     string
		wantMsg string
	}{
		{"empty name", "", `{}`, "schema name"},
		{"name with space", "my schema", `{}`, "schema name"},
		{"name too long", strings.Repeat("a", 65), `{}`, "schema name"},
		{"empty definition", "ok", ``, "JSON object"},
		{"array definition", "ok", `[]`, "JSON object"},
		{"broken json", "ok", `{"type":`, "JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sname, "", json.RawMessage(tt.def), false)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	if s.Name() != DefaultName {
		t.Errorf("Name() = %q", s.Name())
	}
	if !s.Strict() {
		t.Error("default schema should be strict")
	}

	var parsed struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(s.Definition(), &parsed); err != nil {
		t.Fatalf("definition is not valid JSON: %v", err)
	}
	if parsed.Type != "object" {
		t.Errorf("type = %q", parsed.Type)
	}
	if _, ok := parsed.Properties["relevant"]; !ok {
		t.Error("missing relevant property")
	}
	if _, ok := parsed.Properties["irrelevant"]; !ok {
		t.Error("missing irrelevant property")
	}
	if len(parsed.Required) != 2 {
		t.Errorf("required = %v", parsed.Required)
	}
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a := Default()
	b := Default()
	a.Definition()[0] = 'X'
	if b.Definition()[0] != '{' {
		t.Error("Default() values share definition storage")
	}
}
