package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrIncompatible reports a shape mismatch between a Value and the native
// type it was asked to decode into. Callers match it with errors.Is.
var ErrIncompatible = errors.New("value: incompatible kind")

// FromInterface projects a native Go value into a Value. The projection is
// total and never fails: anything that has no boundary representation
// becomes Null. In particular NaN, infinities, and unsigned integers beyond
// the 64-bit signed range collapse to Null rather than erroring; this lossy
// fallback is deliberate and part of the boundary contract.
func FromInterface(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return fromUint64(uint64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return fromUint64(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Null()
	case []Value:
		return Array(t...)
	case map[string]Value:
		return Object(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return Value{kind: KindArray, arr: items}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromInterface(item)
		}
		return Value{kind: KindObject, obj: fields}
	default:
		return fromJSONBridge(v)
	}
}

func fromUint64(u uint64) Value {
	if u > math.MaxInt64 {
		return Null()
	}
	return Int(int64(u))
}

// fromJSONBridge projects arbitrary record types through JSON. Encoding
// failures fall back to Null to keep the projection total.
func fromJSONBridge(v any) Value {
	data, err := json.Marshal(v)
	if err != nil {
		return Null()
	}
	var out Value
	if err := out.UnmarshalJSON(data); err != nil {
		return Null()
	}
	return out
}

// ToInterface projects the Value back into plain Go types: nil, bool,
// int64, float64, string, []byte, []any, and map[string]any.
func (v Value) ToInterface() any {
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
		cp := make([]byte, len(v.raw))
		copy(cp, v.raw)
		return cp
	case KindArray:
		items := make([]any, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.ToInterface()
		}
		return items
	case KindObject:
		fields := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			fields[k] = item.ToInterface()
		}
		return fields
	default:
		return nil
	}
}

// Decode extracts a native value of type T from a Value. It fails with an
// error matching ErrIncompatible when the stored kind cannot produce a T.
// Primitive kinds decode directly; record types decode through the JSON
// bridge so any struct with json tags can cross the boundary.
func Decode[T any](v Value) (T, error) {
	var zero T
	switch p := any(&zero).(type) {
	case *Value:
		*p = v
		return zero, nil
	case *any:
		*p = v.ToInterface()
		return zero, nil
	case *bool:
		b, ok := v.AsBool()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = b
		return zero, nil
	case *int64:
		i, ok := v.AsInt()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = i
		return zero, nil
	case *int:
		i, ok := v.AsInt()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = int(i)
		return zero, nil
	case *float64:
		// Integers widen to float, mirroring the JSON number model.
		switch v.kind {
		case KindFloat:
			*p = v.f
		case KindInt:
			*p = float64(v.i)
		default:
			return zero, incompatible(v, zero)
		}
		return zero, nil
	case *string:
		s, ok := v.AsString()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = s
		return zero, nil
	case *[]byte:
		b, ok := v.AsBytes()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = b
		return zero, nil
	case *[]Value:
		items, ok := v.AsArray()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = items
		return zero, nil
	case *map[string]Value:
		fields, ok := v.AsObject()
		if !ok {
			return zero, incompatible(v, zero)
		}
		*p = fields
		return zero, nil
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return zero, incompatible(v, zero)
		}
		if err := json.Unmarshal(data, &zero); err != nil {
			return zero, fmt.Errorf("%w: cannot decode %s into %T: %v", ErrIncompatible, v.Kind(), zero, err)
		}
		return zero, nil
	}
}

func incompatible(v Value, target any) error {
	return fmt.Errorf("%w: cannot decode %s into %T", ErrIncompatible, v.Kind(), target)
}
