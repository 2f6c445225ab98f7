package value

import (
	"strings"
	"time"
)

// Record is an ordered set of uniquely named fields. Setting an existing name
// replaces its value in place.
type Record struct {
	fields []Field
}

func NewRecord() *Record {
	return &Record{}
}

func (r *Record) Set(name string, v Value) *Record {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return r
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
	return r
}

func (r *Record) SetNull(name string) *Record { return r.Set(name, Null()) }
func (r *Record) SetBool(name string, b bool) *Record { return r.Set(name, Bool(b)) }
func (r *Record) SetInt(name string, i int64) *Record { return r.Set(name, Int(i)) }
func (r *Record) SetFloat(name string, f float64) *Record { return r.Set(name, Float(f)) }
func (r *Record) SetString(name string, s string) *Record { return r.Set(name, String(s)) }
func (r *Record) SetBytes(name string, b []byte) *Record { return r.Set(name, Bytes(b)) }
func (r *Record) SetTimestamp(name string, t time.Time) *Record { return r.Set(name, Timestamp(t)) }
func (r *Record) SetList(name string, vals ...Value) *Record { return r.Set(name, List(vals...)) }
func (r *Record) SetRecord(name string, sub *Record) *Record { return r.Set(name, RecordOf(sub)) }

func (r *Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Fields returns the fields in insertion order. The slice must not be modified.
func (r *Record) Fields() []Field {
	return r.fields
}

func (r *Record) Len() int {
	return len(r.fields)
}

// Equal matches fields by name, so field order does not matter
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.fields) != len(o.fields) {
		return false
	}
	for _, f := range r.fields {
		ov, ok := o.Get(f.Name)
		if !ok || !f.Value.Equal(ov) {
			return false
		}
	}
	return true
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, f := range r.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Value.String())
	}
	sb.WriteString("}")
	return sb.String()
}
