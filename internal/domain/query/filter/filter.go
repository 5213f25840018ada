package filter

import (
	"fmt"

	"github.com/kailas-cloud/docquery/internal/domain/document"
)

// MaxFilters is the maximum number of predicates in one filter set.
const MaxFilters = 32

// Operator names a comparison between a metadata value and a filter value.
type Operator string

// Supported operators. The zero Operator behaves as Equals.
const (
	Equals             Operator = "equals"
	NotEquals          Operator = "notEquals"
	Contains           Operator = "contains"
	StartsWith         Operator = "startsWith"
	EndsWith           Operator = "endsWith"
	Regex              Operator = "regex"
	GreaterThan        Operator = "greaterThan"
	LessThan           Operator = "lessThan"
	GreaterThanOrEqual Operator = "greaterThanOrEqual"
	LessThanOrEqual    Operator = "lessThanOrEqual"
)

// IsValid reports whether the operator is known (empty counts as Equals).
func (o Operator) IsValid() bool {
	switch o {
	case "", Equals, NotEquals, Contains, StartsWith, EndsWith, Regex,
		GreaterThan, LessThan, GreaterThanOrEqual, LessThanOrEqual:
		return true
	}
	return false
}

// TextOnly reports whether the operator applies only to string operands.
func (o Operator) TextOnly() bool {
	switch o {
	case Contains, StartsWith, EndsWith, Regex:
		return true
	}
	return false
}

// orDefault resolves the empty operator to Equals.
func (o Operator) orDefault() Operator {
	if o == "" {
		return Equals
	}
	return o
}

// Filter is a single predicate over one metadata key.
type Filter struct {
	Key      string         `json:"key"`
	Value    document.Value `json:"value"`
	Operator Operator       `json:"operator,omitempty"`
}

// New creates a Filter. An empty operator defaults to Equals.
func New(key string, value document.Value, op Operator) (Filter, error) {
	if key == "" {
		return Filter{}, fmt.Errorf("filter key is required")
	}
	if !op.IsValid() {
		return Filter{}, fmt.Errorf("unknown operator %q for key %q", op, key)
	}
	return Filter{Key: key, Value: value, Operator: op.orDefault()}, nil
}

// validate checks a filter for strict evaluation.
func (f Filter) validate() error {
	if f.Key == "" {
		return fmt.Errorf("filter key is required")
	}
	if !f.Operator.IsValid() {
		return fmt.Errorf("unknown operator %q for key %q", f.Operator, f.Key)
	}
	if f.Value.Kind() == document.KindInvalid {
		return fmt.Errorf("filter value is required for key %q", f.Key)
	}
	if f.Operator.TextOnly() && f.Value.Kind() != document.KindString {
		return fmt.Errorf("operator %q requires a string value for key %q", f.Operator, f.Key)
	}
	return nil
}
