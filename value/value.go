// Package value is a tagged-variant model of the rows sent to a streaming insert:
// a Value is a scalar, a list of values, or a record of named values, and nests
// to any depth. Records keep their fields in insertion order.
package value

import (
	"fmt"
	"time"
)

type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	IntKind
	FloatKind
	StringKind
	BytesKind
	TimestampKind
	ListKind
	RecordKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case StringKind:
		return "string"
	case BytesKind:
		return "bytes"
	case TimestampKind:
		return "timestamp"
	case ListKind:
		return "list"
	case RecordKind:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type (
	// Value is a single cell. The zero Value is null.
	Value struct {
		kind Kind
		b    bool
		i    int64
		f    float64
		s    string
		by   []byte
		t    time.Time
		list []Value
		rec  *Record
	}

	Field struct {
		Name  string
		Value Value
	}

	// Saver is implemented by typed rows that know how to describe themselves as a Record
	Saver interface {
		Save() (*Record, error)
	}
)

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }
func Int(i int64) Value { return Value{kind: IntKind, i: i} }
func Float(f float64) Value { return Value{kind: FloatKind, f: f} }
func String(s string) Value { return Value{kind: StringKind, s: s} }
func Bytes(b []byte) Value { return Value{kind: BytesKind, by: b} }
func Timestamp(t time.Time) Value { return Value{kind: TimestampKind, t: t} }

func List(vals ...Value) Value {
	return Value{kind: ListKind, list: vals}
}

// RecordOf wraps r as a Value. A nil r is null.
func RecordOf(r *Record) Value {
	if r == nil {
		return Null()
	}
	return Value{kind: RecordKind, rec: r}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == NullKind }

// IsScalar is true for everything but lists and records (null included)
func (v Value) IsScalar() bool { return v.kind != ListKind && v.kind != RecordKind }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == IntKind }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == FloatKind }
func (v Value) AsString() (string, bool) { return v.s, v.kind == StringKind }
func (v Value) AsBytes() ([]byte, bool) { return v.by, v.kind == BytesKind }
func (v Value) AsTimestamp() (time.Time, bool) { return v.t, v.kind == TimestampKind }
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == ListKind }
func (v Value) AsRecord() (*Record, bool) { return v.rec, v.kind == RecordKind }

// Equal compares kinds and contents recursively
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case BoolKind:
		return v.b == o.b
	case IntKind:
		return v.i == o.i
	case FloatKind:
		return v.f == o.f
	case StringKind:
		return v.s == o.s
	case BytesKind:
		return string(v.by) == string(o.by)
	case TimestampKind:
		return v.t.Equal(o.t)
	case ListKind:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case RecordKind:
		return v.rec.Equal(o.rec)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case NullKind:
		return "null"
	case BoolKind:
		return fmt.Sprint(v.b)
	case IntKind:
		return fmt.Sprint(v.i)
	case FloatKind:
		return fmt.Sprint(v.f)
	case StringKind:
		return fmt.Sprintf("%q", v.s)
	case BytesKind:
		return fmt.Sprintf("bytes(%d)", len(v.by))
	case TimestampKind:
		return v.t.Format(time.RFC3339Nano)
	case ListKind:
		return fmt.Sprint(v.list)
	case RecordKind:
		return v.rec.String()
	}
	return v.kind.String()
}
