package schema

import (
	bigquery "google.golang.org/api/bigquery/v2"
)

type (
	FieldType string
	FieldMode string

	FieldSchema struct {
		Name        string
		Type        FieldType
		Mode        FieldMode
		Description string
		// Fields is the nested schema when Type is RECORD
		Fields []*FieldSchema
	}

	TableSchema struct {
		Fields []*FieldSchema
	}
)

const (
	StringType    FieldType = "STRING"
	BytesType     FieldType = "BYTES"
	IntegerType   FieldType = "INTEGER"
	FloatType     FieldType = "FLOAT"
	BooleanType   FieldType = "BOOLEAN"
	TimestampType FieldType = "TIMESTAMP"
	DateType      FieldType = "DATE"
	TimeType      FieldType = "TIME"
	DateTimeType  FieldType = "DATETIME"
	NumericType   FieldType = "NUMERIC"
	JSONType      FieldType = "JSON"
	RecordType    FieldType = "RECORD"

	Nullable FieldMode = "NULLABLE"
	Required FieldMode = "REQUIRED"
	Repeated FieldMode = "REPEATED"
)

func New(fields ...*FieldSchema) TableSchema {
	return TableSchema{Fields: fields}
}

func field(name string, t FieldType) *FieldSchema {
	return &FieldSchema{Name: name, Type: t, Mode: Nullable}
}

func String(name string) *FieldSchema { return field(name, StringType) }
func Bytes(name string) *FieldSchema { return field(name, BytesType) }
func Integer(name string) *FieldSchema { return field(name, IntegerType) }
func Float(name string) *FieldSchema { return field(name, FloatType) }
func Bool(name string) *FieldSchema { return field(name, BooleanType) }
func Timestamp(name string) *FieldSchema { return field(name, TimestampType) }
func Date(name string) *FieldSchema { return field(name, DateType) }
func Time(name string) *FieldSchema { return field(name, TimeType) }
func DateTime(name string) *FieldSchema { return field(name, DateTimeType) }
func Numeric(name string) *FieldSchema { return field(name, NumericType) }
func JSON(name string) *FieldSchema { return field(name, JSONType) }

func Record(name string, fields ...*FieldSchema) *FieldSchema {
	f := field(name, RecordType)
	f.Fields = fields
	return f
}

func (f *FieldSchema) Required() *FieldSchema {
	f.Mode = Required
	return f
}

func (f *FieldSchema) Repeated() *FieldSchema {
	f.Mode = Repeated
	return f
}

func (f *FieldSchema) Describe(desc string) *FieldSchema {
	f.Description = desc
	return f
}

// ToAPI converts to the REST representation used when creating tables
func (s TableSchema) ToAPI() *bigquery.TableSchema {
	return &bigquery.TableSchema{Fields: fieldsToAPI(s.Fields)}
}

func fieldsToAPI(fields []*FieldSchema) []*bigquery.TableFieldSchema {
	var out []*bigquery.TableFieldSchema
	for _, f := range fields {
		tfs := &bigquery.TableFieldSchema{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        string(f.Mode),
			Description: f.Description,
		}
		if f.Type == RecordType {
			tfs.Fields = fieldsToAPI(f.Fields)
		}
		out = append(out, tfs)
	}
	return out
}

// FromAPI converts a REST schema back. An empty mode is read as NULLABLE.
func FromAPI(ts *bigquery.TableSchema) TableSchema {
	if ts == nil {
		return TableSchema{}
	}
	return TableSchema{Fields: fieldsFromAPI(ts.Fields)}
}

func fieldsFromAPI(fields []*bigquery.TableFieldSchema) []*FieldSchema {
	var out []*FieldSchema
	for _, tfs := range fields {
		f := &FieldSchema{
			Name:        tfs.Name,
			Type:        FieldType(tfs.Type),
			Mode:        FieldMode(tfs.Mode),
			Description: tfs.Description,
		}
		if f.Mode == "" {
			f.Mode = Nullable
		}
		// the API reports STRUCT as an alias of RECORD
		if f.Type == "STRUCT" {
			f.Type = RecordType
		}
		if f.Type == RecordType {
			f.Fields = fieldsFromAPI(tfs.Fields)
		}
		out = append(out, f)
	}
	return out
}
