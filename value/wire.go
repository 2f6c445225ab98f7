package value

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// Wire converts r into the JSON-ready shape the insertAll API takes: a map of
// field name to scalar, []any, or nested map[string]any.
//
// BYTES go out base64 encoded and timestamps as UTC RFC3339 strings.
func (r *Record) Wire() (map[string]any, error) {
	return r.wire("")
}

func (r *Record) wire(path string) (map[string]any, error) {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		if f.Name == "" {
			return nil, NewSerializationError(path, "empty field name")
		}
		w, err := f.Value.wire(JoinPath(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[f.Name] = w
	}
	return out, nil
}

func (v Value) Wire() (any, error) {
	return v.wire("")
}

func (v Value) wire(path string) (any, error) {
	switch v.kind {
	case NullKind:
		return nil, nil
	case BoolKind:
		return v.b, nil
	case IntKind:
		return v.i, nil
	case FloatKind:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, NewSerializationError(path, fmt.Sprintf("non-finite float %v", v.f))
		}
		return v.f, nil
	case StringKind:
		return v.s, nil
	case BytesKind:
		return base64.StdEncoding.EncodeToString(v.by), nil
	case TimestampKind:
		return v.t.UTC().Format(time.RFC3339Nano), nil
	case ListKind:
		out := make([]any, len(v.list))
		for i, elem := range v.list {
			elemPath := IndexPath(path, i)
			switch elem.kind {
			case ListKind:
				return nil, NewSerializationError(elemPath, "lists of lists are not supported")
			case NullKind:
				return nil, NewSerializationError(elemPath, "null list element")
			}
			w, err := elem.wire(elemPath)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case RecordKind:
		return v.rec.wire(path)
	}
	return nil, NewSerializationError(path, "unknown kind "+v.kind.String())
}
