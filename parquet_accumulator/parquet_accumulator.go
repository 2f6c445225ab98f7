package parquet_accumulator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type (
	// ParquetSchemaAccumulator collects the columns of flat rows so they can be
	// written with a single parquet JSON schema
	ParquetSchemaAccumulator struct {
		columns map[string]ColumnType
	}

	ParquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*ParquetJSONSchema `json:",omitempty"`
	}

	ColumnType string
)

const (
	StringColumn ColumnType = "string"
	BoolColumn   ColumnType = "bool"
	IntColumn    ColumnType = "int"
	FloatColumn  ColumnType = "float"
)

func NewParquetAccumulator() *ParquetSchemaAccumulator {
	return &ParquetSchemaAccumulator{
		columns: map[string]ColumnType{},
	}
}

// WriteRow folds a flat row into the schema. A column seen with two different
// types becomes a string column, except int and float which widen to float.
func (pa *ParquetSchemaAccumulator) WriteRow(row map[string]any) {
	for rawKey, val := range row {
		key := ColumnName(rawKey)
		if val == nil {
			continue
		}
		colType := columnTypeOf(val)
		existing, exists := pa.columns[key]
		switch {
		case !exists:
			pa.columns[key] = colType
		case existing == colType:
		case (existing == IntColumn && colType == FloatColumn) || (existing == FloatColumn && colType == IntColumn):
			pa.columns[key] = FloatColumn
		default:
			pa.columns[key] = StringColumn
		}
	}
}

// ColumnName maps a flattened key to a name parquet accepts. Anything outside
// [A-Za-z0-9_] becomes an underscore, so "a.b" becomes "a_b".
func ColumnName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	if name == "" {
		return "_"
	}
	return name
}

func columnTypeOf(val any) ColumnType {
	switch v := val.(type) {
	case string, *string:
		return StringColumn
	case bool, *bool:
		return BoolColumn
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return IntColumn
	case float32, float64:
		return FloatColumn
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return IntColumn
		}
		return FloatColumn
	default:
		return StringColumn
	}
}

// GetColumnNames returns the columns in sorted order
func (pa *ParquetSchemaAccumulator) GetColumnNames() []string {
	cols := make([]string, 0, len(pa.columns))
	for name := range pa.columns {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// GetColumnTypes returns the types in the same order as GetColumnNames
func (pa *ParquetSchemaAccumulator) GetColumnTypes() []ColumnType {
	var types []ColumnType
	for _, name := range pa.GetColumnNames() {
		types = append(types, pa.columns[name])
	}
	return types
}

func (ct ColumnType) tag(name string) string {
	var tagArr []string
	switch ct {
	case BoolColumn:
		tagArr = append(tagArr, "type=BOOLEAN")
	case IntColumn:
		tagArr = append(tagArr, "type=INT64")
	case FloatColumn:
		tagArr = append(tagArr, "type=DOUBLE")
	default:
		tagArr = append(tagArr, "type=BYTE_ARRAY", "convertedtype=UTF8", "encoding=PLAIN")
	}
	tagArr = append(tagArr, "name="+name, "repetitiontype=OPTIONAL")
	return strings.Join(tagArr, ", ")
}

// GetSchemaString returns the JSON formatted schema string
func (pa *ParquetSchemaAccumulator) GetSchemaString() (string, error) {
	var fields []*ParquetJSONSchema
	for _, name := range pa.GetColumnNames() {
		fields = append(fields, &ParquetJSONSchema{Tag: pa.columns[name].tag(name)})
	}
	pjs := ParquetJSONSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: fields,
	}

	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}

// Normalize coerces a row to the accumulated column types so the JSON writer
// accepts it. Keys are renamed with ColumnName and nil values are dropped,
// which the writer reads as null.
func (pa *ParquetSchemaAccumulator) Normalize(row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for rawKey, val := range row {
		key := ColumnName(rawKey)
		if val == nil {
			continue
		}
		colType, ok := pa.columns[key]
		if !ok {
			return nil, fmt.Errorf("column %s was never written to the accumulator", key)
		}
		if colType != StringColumn {
			if p, isPtr := val.(*bool); isPtr {
				val = *p
			}
			out[key] = val
			continue
		}
		switch v := val.(type) {
		case string:
			out[key] = v
		case *string:
			out[key] = *v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("error in json.Marshal for column %s: %w", key, err)
			}
			out[key] = string(b)
		}
	}
	return out, nil
}
