package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// FromAny converts untyped Go values (the shapes produced by encoding/json, plus
// common scalars, Value, *Record and Saver) into a Value. Anything else is a
// SerializationError.
func FromAny(v any) (Value, error) {
	return fromAny("", v)
}

// RecordFromMap converts m into a Record with its fields sorted by name
func RecordFromMap(m map[string]any) (*Record, error) {
	return recordFromMap("", m)
}

func recordFromMap(path string, m map[string]any) (*Record, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord()
	for _, k := range keys {
		if k == "" {
			return nil, NewSerializationError(path, "empty field name")
		}
		fv, err := fromAny(JoinPath(path, k), m[k])
		if err != nil {
			return nil, err
		}
		r.Set(k, fv)
	}
	return r, nil
}

func fromAny(path string, v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Record:
		return RecordOf(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case time.Time:
		return Timestamp(t), nil
	case *time.Time:
		if t == nil {
			return Null(), nil
		}
		return Timestamp(*t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, NewSerializationError(path, fmt.Sprintf("uint %d overflows int64", t))
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, NewSerializationError(path, fmt.Sprintf("uint64 %d overflows int64", t))
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, &SerializationError{Path: path, Reason: "bad json number", Err: err}
		}
		return Float(f), nil
	case map[string]any:
		r, err := recordFromMap(path, t)
		if err != nil {
			return Value{}, err
		}
		return RecordOf(r), nil
	case []any:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []map[string]any:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []string:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []int64:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []float64:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []bool:
		return listFrom(path, t, func(i int) any { return t[i] })
	case []Value:
		return List(t...), nil
	case Saver:
		r, err := t.Save()
		if err != nil {
			return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("error saving %T", v), Err: err}
		}
		return RecordOf(r), nil
	default:
		return Value{}, NewSerializationError(path, fmt.Sprintf("unsupported type %T", v))
	}
}

func listFrom[T any](path string, s []T, at func(i int) any) (Value, error) {
	vals := make([]Value, len(s))
	for i := range s {
		ev, err := fromAny(IndexPath(path, i), at(i))
		if err != nil {
			return Value{}, err
		}
		vals[i] = ev
	}
	return List(vals...), nil
}
