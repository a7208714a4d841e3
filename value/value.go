// Package value defines the boundary data model exchanged between the host
// and plugin runtimes. Value is a closed tagged union; it is the only type
// that crosses the host/plugin boundary, and every native type must be
// projectable to and from it.
package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is an immutable tagged union of the boundary-safe variants.
// The zero Value is Null. Accessors that return composite data (bytes,
// arrays, objects) return copies so that a constructed Value can never be
// mutated through an escaped reference.
//
// Values serialize to JSON for engine bridging. Bytes marshal to base64
// strings because JSON has no byte-string kind; round-tripping a Bytes
// value through JSON therefore widens it to String. The boundary
// representation is Value itself, JSON is only the bridge.
type Value struct {
	arr  []Value
	obj  map[string]Value
	s    string
	raw  []byte
	i    int64
	f    float64
	kind Kind
	b    bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int returns a 64-bit signed integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns an IEEE double Value. NaN and infinities are not
// representable at the boundary and collapse to Null.
func Float(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null()
	}
	return Value{kind: KindFloat, f: v}
}

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bytes returns a byte-sequence Value. The input slice is copied.
func Bytes(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: KindBytes, raw: cp}
}

// Array returns an ordered sequence Value. The item slice is copied.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Object returns a string-keyed mapping Value. The field map is copied.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, or false if the kind does not match.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload, or false if the kind does not match.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload, or false if the kind does not match.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload, or false if the kind does not match.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBytes returns a copy of the byte payload, or false if the kind does not match.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	cp := make([]byte, len(v.raw))
	copy(cp, v.raw)
	return cp, true
}

// AsArray returns a copy of the item slice, or false if the kind does not match.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// AsObject returns a copy of the field map, or false if the kind does not match.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	cp := make(map[string]Value, len(v.obj))
	for k, item := range v.obj {
		cp[k] = item
	}
	return cp, true
}

// Len returns the element count for arrays and objects and the byte count
// for bytes and strings. Other kinds report zero.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	case KindBytes:
		return len(v.raw)
	case KindString:
		return len(v.s)
	default:
		return 0
	}
}

// Index returns the array element at i, or false when out of range or not
// an array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null(), false
	}
	return v.arr[i], true
}

// Field returns the object field under key, or false when absent or not
// an object.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	item, ok := v.obj[key]
	return item, ok
}

// Equal reports structural equality. Kinds must match exactly: Int(1) and
// Float(1.0) are not equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBytes:
		if len(v.raw) != len(other.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != other.raw[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			got, ok := other.obj[k]
			if !ok || !item.Equal(got) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep structural copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		return Bytes(v.raw)
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: items}
	case KindObject:
		fields := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			fields[k] = item.Clone()
		}
		return Value{kind: KindObject, obj: fields}
	default:
		return v
	}
}

// String renders a compact debug representation.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, v.obj[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.kind.String()
	}
}

// MarshalJSON encodes the value as plain JSON. Bytes encode as base64
// strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSONValue())
}

func (v Value) toJSONValue() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw)
	case KindArray:
		items := make([]any, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.toJSONValue()
		}
		return items
	case KindObject:
		fields := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			fields[k] = item.toJSONValue()
		}
		return fields
	default:
		return nil
	}
}

// UnmarshalJSON decodes plain JSON into a Value. Whole numbers decode as
// Int, everything else numeric as Float.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}
