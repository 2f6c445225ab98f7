package parquet_accumulator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/bqstream/utils"
	"github.com/danthegoodman1/gojsonutils"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

func TestGetSchemaString(t *testing.T) {
	a := NewParquetAccumulator()
	a.WriteRow(map[string]any{
		"colA": "hey",
	})
	a.WriteRow(map[string]any{
		"colB": 1.2,
	})
	a.WriteRow(map[string]any{
		"colC": true,
		"colD": int64(3),
	})
	a.WriteRow(map[string]any{
		"colA": "hey",
		"colB": 1,
		"colD": "now a string",
		"colE": nil,
	})

	schemaString, err := a.GetSchemaString()
	if err != nil {
		t.Fatal(err)
	}
	if schemaString != `{"Tag":"name=parquet_go_root, repetitiontype=REQUIRED","Fields":[{"Tag":"type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN, name=colA, repetitiontype=OPTIONAL"},{"Tag":"type=DOUBLE, name=colB, repetitiontype=OPTIONAL"},{"Tag":"type=BOOLEAN, name=colC, repetitiontype=OPTIONAL"},{"Tag":"type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN, name=colD, repetitiontype=OPTIONAL"}]}` {
		t.Log(schemaString)
		t.Fatal("got incorrect schema string")
	}

	types := a.GetColumnTypes()
	if fmt.Sprint(types) != "[string float bool string]" {
		t.Fatalf("bad column types %v", types)
	}
}

func TestNormalize(t *testing.T) {
	a := NewParquetAccumulator()
	a.WriteRow(map[string]any{"d": int64(1), "s": "x"})
	a.WriteRow(map[string]any{"d": "two", "s": utils.Ptr("y"), "n": nil})

	row, err := a.Normalize(map[string]any{"d": int64(1), "s": utils.Ptr("y"), "n": nil})
	if err != nil {
		t.Fatal(err)
	}
	if row["d"] != "1" || row["s"] != "y" {
		t.Fatalf("bad normalized row %+v", row)
	}
	if _, has := row["n"]; has {
		t.Fatal("nil value kept")
	}

	if _, err := a.Normalize(map[string]any{"unknown": 1}); err == nil {
		t.Fatal("expected an error for an unknown column")
	}
}

func TestFullCycle(t *testing.T) {
	jsonMap := map[string]any{
		"colA": map[string]any{
			"a": "hey",
			"b": 2,
		},
		"colC": true,
		"colB": 1.2,
	}
	flat, err := gojsonutils.Flatten(jsonMap, nil)
	if err != nil {
		t.Fatal("error flattening JSON map")
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		t.Fatalf("got a non flat map: %+v", flat)
	}
	psa := NewParquetAccumulator()
	psa.WriteRow(flatMap)

	t.Log("cols", psa.GetColumnNames())

	parquetSchema, err := psa.GetSchemaString()
	if err != nil {
		t.Fatal("error in GetSchemaString")
	}

	fileName := filepath.Join(t.TempDir(), "temp.parquet")
	f, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}

	pw, err := writer.NewJSONWriterFromWriter(parquetSchema, f, 4)
	if err != nil {
		t.Fatal(err)
	}

	normalized, err := psa.Normalize(flatMap)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err = pw.Write(string(b)); err != nil {
			t.Fatal(err)
		}
	}

	if err = pw.WriteStop(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	fr, err := local.NewLocalFileReader(fileName)
	if err != nil {
		t.Fatal("Can't open file", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, parquetSchema, 4)
	if err != nil {
		t.Fatal("Can't create parquet reader", err)
	}
	defer pr.ReadStop()

	if num := int(pr.GetNumRows()); num != 3 {
		t.Fatalf("expected 3 rows, got %d", num)
	}
}

func TestColumnName(t *testing.T) {
	if ColumnName("a.b-c") != "a_b_c" {
		t.Fatal("bad column name")
	}
	a := NewParquetAccumulator()
	a.WriteRow(map[string]any{"nested.key": "v"})
	if a.GetColumnNames()[0] != "nested_key" {
		t.Fatalf("key not sanitized: %v", a.GetColumnNames())
	}
	row, err := a.Normalize(map[string]any{"nested.key": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if row["nested_key"] != "v" {
		t.Fatalf("bad normalized row %+v", row)
	}
}
