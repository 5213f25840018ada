package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the runtime type of a metadata value.
type Kind uint8

// Metadata value kinds.
const (
	KindInvalid Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "invalid"
	}
}

// Value is a metadata value: either a string or a number.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// IsZero reports whether the value is empty: "", 0, or unset.
func (v Value) IsZero() bool {
	switch v.kind {
	case KindString:
		return v.str == ""
	case KindNumber:
		return v.num == 0
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a JSON string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string or number.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty metadata value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string value: %w", err)
		}
		*v = String(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode number value: %w", err)
		}
		*v = Number(f)
	default:
		return fmt.Errorf("metadata value must be a string or a number, got %s", data)
	}
	return nil
}
