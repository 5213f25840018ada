package filter

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/document"
)

// Engine evaluates filter sets against document metadata.
//
// A document survives when it satisfies every filter. A missing key, or a key
// holding "" or 0, fails the predicate regardless of operator. In lenient mode
// (the default) operators that do not apply to the operand types, unknown
// operators and invalid regex patterns are treated as "no match", except that
// notEquals across kinds matches. In strict mode any comparison across kinds,
// unknown operator or invalid pattern is reported as domain.ErrInvalidFilter.
type Engine struct {
	strict bool
}

// NewEngine creates a lenient filter engine.
func NewEngine() *Engine { return &Engine{} }

// NewStrictEngine creates an engine that rejects filters it cannot evaluate.
func NewStrictEngine() *Engine { return &Engine{strict: true} }

// Strict reports whether the engine runs in strict mode.
func (e *Engine) Strict() bool { return e.strict }

// predicate is a filter prepared for repeated evaluation.
type predicate struct {
	Filter
	re *regexp.Regexp
}

// Apply returns the documents that satisfy all filters, in their original order.
// With no filters the input slice itself is returned.
func (e *Engine) Apply(docs []document.Document, filters []Filter) ([]document.Document, error) {
	if len(filters) == 0 {
		return docs, nil
	}

	preds, err := e.prepare(filters)
	if err != nil {
		return nil, err
	}

	out := make([]document.Document, 0, len(docs))
	for i := range docs {
		ok, err := e.matchAll(&docs[i], preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, docs[i])
		}
	}
	return out, nil
}

// Match reports whether a single document satisfies all filters.
func (e *Engine) Match(doc document.Document, filters []Filter) (bool, error) {
	preds, err := e.prepare(filters)
	if err != nil {
		return false, err
	}
	return e.matchAll(&doc, preds)
}

func (e *Engine) prepare(filters []Filter) ([]predicate, error) {
	if e.strict && len(filters) > MaxFilters {
		return nil, fmt.Errorf("%w: too many filters (max %d)", domain.ErrInvalidFilter, MaxFilters)
	}

	preds := make([]predicate, len(filters))
	for i, f := range filters {
		if e.strict {
			if err := f.validate(); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
			}
		}
		preds[i] = predicate{Filter: f}
		if f.Operator == Regex && f.Value.Kind() == document.KindString {
			re, err := regexp.Compile(f.Value.Str())
			if err != nil {
				if e.strict {
					return nil, fmt.Errorf("%w: regex for key %q: %w", domain.ErrInvalidFilter, f.Key, err)
				}
				continue
			}
			preds[i].re = re
		}
	}
	return preds, nil
}

func (e *Engine) matchAll(doc *document.Document, preds []predicate) (bool, error) {
	for i := range preds {
		ok, err := e.match(doc, &preds[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) match(doc *document.Document, p *predicate) (bool, error) {
	v, ok := doc.Lookup(p.Key)
	if !ok || v.IsZero() {
		return false, nil
	}

	op := p.Operator.orDefault()
	fv := p.Value
	bothText := v.Kind() == document.KindString && fv.Kind() == document.KindString

	if op.TextOnly() {
		if !bothText {
			return false, e.mismatch(p, v)
		}
		switch op {
		case Contains:
			return strings.Contains(v.Str(), fv.Str()), nil
		case StartsWith:
			return strings.HasPrefix(v.Str(), fv.Str()), nil
		case EndsWith:
			return strings.HasSuffix(v.Str(), fv.Str()), nil
		case Regex:
			return p.re != nil && p.re.MatchString(v.Str()), nil
		}
	}

	c, same := compare(v, fv)
	switch op {
	case Equals:
		if !same {
			return false, e.mismatch(p, v)
		}
		return c == 0, nil
	case NotEquals:
		if !same {
			return true, e.mismatch(p, v)
		}
		return c != 0, nil
	case GreaterThan, LessThan, GreaterThanOrEqual, LessThanOrEqual:
		if !same {
			return false, e.mismatch(p, v)
		}
		switch op {
		case GreaterThan:
			return c > 0, nil
		case LessThan:
			return c < 0, nil
		case GreaterThanOrEqual:
			return c >= 0, nil
		default:
			return c <= 0, nil
		}
	}
	return false, nil
}

// mismatch returns nil in lenient mode and a typed error in strict mode.
func (e *Engine) mismatch(p *predicate, v document.Value) error {
	if !e.strict {
		return nil
	}
	return fmt.Errorf("%w: operator %q cannot compare %s metadata with %s value for key %q",
		domain.ErrInvalidFilter, p.Operator.orDefault(), v.Kind(), p.Value.Kind(), p.Key)
}

// compare orders two values of the same kind: numbers numerically,
// strings byte-wise. Values of different kinds are not comparable.
func compare(a, b document.Value) (int, bool) {
	if a.Kind() != b.Kind() {
		return 0, false
	}
	switch a.Kind() {
	case document.KindString:
		return strings.Compare(a.Str(), b.Str()), true
	case document.KindNumber:
		return cmp.Compare(a.Num(), b.Num()), true
	default:
		return 0, false
	}
}
