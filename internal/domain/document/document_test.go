package document

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	meta := map[string]Value{"lang": String("go"), "priority": Number(1.5)}

	doc, err := New("doc-1", "hello world", meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "doc-1" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Content != "hello world" {
		t.Errorf("Content = %q", doc.Content)
	}
	if v, ok := doc.Lookup("lang"); !ok || v.Str() != "go" {
		t.Errorf("Lookup(lang) = %v, %v", v, ok)
	}
	if v, ok := doc.Lookup("priority"); !ok || v.Num() != 1.5 {
		t.Errorf("Lookup(priority) = %v, %v", v, ok)
	}
}

func TestNew_EmptyName(t *testing.T) {
	_, err := New("", "content", nil)
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNew_ClonesMetadata(t *testing.T) {
	meta := map[string]Value{"k": String("v")}

	doc, _ := New("doc-1", "content", meta)
	meta["k"] = String("mutated")

	if v, _ := doc.Lookup("k"); v.Str() != "v" {
		t.Error("metadata mutation leaked into document")
	}
}

func TestLookup_Missing(t *testing.T) {
	doc := Document{Name: "d"}
	if _, ok := doc.Lookup("nope"); ok {
		t.Error("Lookup on nil metadata should report missing")
	}
}

func TestValue_IsZero(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"unset", Value{}, true},
		{"empty string", String(""), true},
		{"zero number", Number(0), true},
		{"string", String("x"), false},
		{"number", Number(-1), false},
		{"string zero", String("0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValue_JSON(t *testing.T) {
	var doc Document
	raw := `{"name":"a","content":"c","metadata":{"lang":"en","year":2021,"score":-0.5}}`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v := doc.Metadata["lang"]; v.Kind() != KindString || v.Str() != "en" {
		t.Errorf("lang = %#v", v)
	}
	if v := doc.Metadata["year"]; v.Kind() != KindNumber || v.Num() != 2021 {
		t.Errorf("year = %#v", v)
	}
	if v := doc.Metadata["score"]; v.Kind() != KindNumber || v.Num() != -0.5 {
		t.Errorf("score = %#v", v)
	}

	out, err := json.Marshal(doc.Metadata["year"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "2021" {
		t.Errorf("marshal year = %s", out)
	}
}

func TestValue_UnmarshalRejectsOtherKinds(t *testing.T) {
	for _, raw := range []string{`true`, `null`, `[1]`, `{"a":1}`} {
		var v Value
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestValue_String(t *testing.T) {
	if got := Number(3).String(); got != "3" {
		t.Errorf("Number(3).String() = %q", got)
	}
	if got := Number(2.25).String(); got != "2.25" {
		t.Errorf("Number(2.25).String() = %q", got)
	}
	if got := String("gold").String(); got != "gold" {
		t.Errorf("String(gold).String() = %q", got)
	}
}
