package schema

import (
	"fmt"
	"strings"

	"github.com/danthegoodman1/bqstream/value"
)

// CheckShape verifies that r is structurally compatible with s: every field
// exists (names compare case-insensitively, as BigQuery does), records sit on
// RECORD fields, lists sit on REPEATED fields, and REQUIRED fields are present
// and non-null. Scalar types are left to the server.
//
// With ignoreUnknown, fields that are not in the schema are skipped instead of failing.
func (s TableSchema) CheckShape(r *value.Record, ignoreUnknown bool) error {
	return checkRecord("", s.Fields, r, ignoreUnknown)
}

func lookup(fields []*FieldSchema, name string) *FieldSchema {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

func checkRecord(path string, fields []*FieldSchema, r *value.Record, ignoreUnknown bool) error {
	for _, rf := range r.Fields() {
		fieldPath := value.JoinPath(path, rf.Name)
		fs := lookup(fields, rf.Name)
		if fs == nil {
			if ignoreUnknown {
				continue
			}
			return value.NewSerializationError(fieldPath, "no such field in table schema")
		}
		if err := checkField(fieldPath, fs, rf.Value, ignoreUnknown); err != nil {
			return err
		}
	}

	for _, fs := range fields {
		if fs.Mode != Required {
			continue
		}
		found := false
		for _, rf := range r.Fields() {
			if strings.EqualFold(fs.Name, rf.Name) && !rf.Value.IsNull() {
				found = true
				break
			}
		}
		if !found {
			return value.NewSerializationError(value.JoinPath(path, fs.Name), "missing required field")
		}
	}
	return nil
}

func checkField(path string, fs *FieldSchema, v value.Value, ignoreUnknown bool) error {
	if v.IsNull() {
		if fs.Mode == Required {
			return value.NewSerializationError(path, "null in required field")
		}
		return nil
	}

	if fs.Mode == Repeated {
		elems, ok := v.AsList()
		if !ok {
			return value.NewSerializationError(path, fmt.Sprintf("repeated field got %s", v.Kind()))
		}
		for i, elem := range elems {
			if err := checkElem(value.IndexPath(path, i), fs, elem, ignoreUnknown); err != nil {
				return err
			}
		}
		return nil
	}

	if v.Kind() == value.ListKind {
		return value.NewSerializationError(path, "list in non-repeated field")
	}
	return checkElem(path, fs, v, ignoreUnknown)
}

func checkElem(path string, fs *FieldSchema, v value.Value, ignoreUnknown bool) error {
	if fs.Type == RecordType {
		sub, ok := v.AsRecord()
		if !ok {
			return value.NewSerializationError(path, fmt.Sprintf("record field got %s", v.Kind()))
		}
		return checkRecord(path, fs.Fields, sub, ignoreUnknown)
	}
	if v.Kind() == value.RecordKind && fs.Type != JSONType {
		return value.NewSerializationError(path, fmt.Sprintf("%s field got record", fs.Type))
	}
	return nil
}
