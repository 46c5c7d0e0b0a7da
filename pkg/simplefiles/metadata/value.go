package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which scalar a Value holds.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// Value is a client metadata scalar: a string, a finite number or a boolean.
// The zero Value is invalid.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue returns a number Value.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string and true if v holds a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Number returns the number and true if v holds a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean and true if v holds a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the underlying Go value (string, float64 or bool), or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// IsValid reports whether v holds a storable scalar. Numbers must be finite.
func (v Value) IsValid() bool {
	switch v.kind {
	case KindString, KindBool:
		return true
	case KindNumber:
		return !math.IsNaN(v.num) && !math.IsInf(v.num, 0)
	default:
		return false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("metadata: cannot encode invalid %s value", v.kind)
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case bool:
		return BoolValue(x), nil
	default:
		return Value{}, fmt.Errorf("metadata: unsupported value type %T", raw)
	}
}
