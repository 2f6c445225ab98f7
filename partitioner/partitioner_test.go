package partitioner

import (
	"errors"
	"testing"
	"time"

	"github.com/danthegoodman1/bqstream/value"
)

func TestToDay(t *testing.T) {
	f := Functions["toDay"]

	fixed := time.Date(2023, 3, 7, 15, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	day, err := f(value.NewRecord().SetString("hey", "ho"), []string{"now()"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "07" {
		t.Fatalf("mismatched date for now(): %s", day)
	}

	day, err = f(value.NewRecord().SetString("t", "2022-01-24T00:00:00.000Z"), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "24" {
		t.Fatal("mismatched date for t string")
	}

	day, err = f(value.NewRecord().SetInt("t", 1672406408279), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "30" {
		t.Fatal("mismatched date for t int")
	}

	day, err = f(value.NewRecord().SetFloat("t", 1672406408279.0), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "30" {
		t.Fatal("mismatched date for t float")
	}

	_, err = f(value.NewRecord().SetBool("t", true), []string{"t"})
	if !errors.Is(err, ErrInvalidColumnType) {
		t.Fatalf("did not get invalid col type: %v", err)
	}

	_, err = f(value.NewRecord(), []string{"t"})
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("did not get missing column: %v", err)
	}

	_, err = f(value.NewRecord(), nil)
	if !errors.Is(err, ErrMissingArgs) {
		t.Fatalf("did not get missing args: %v", err)
	}
}

func TestGetRowSuffix(t *testing.T) {
	row := value.NewRecord().SetTimestamp("ts", time.Date(2024, 1, 9, 4, 0, 0, 0, time.UTC))

	suffix, err := GetRowSuffix(row, []SuffixPlan{
		{Func: "toYear", Args: []string{"ts"}},
		{Func: "toMonth", Args: []string{"ts"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if suffix != "_2024_01" {
		t.Fatalf("bad suffix %q", suffix)
	}

	suffix, err = GetRowSuffix(row, []SuffixPlan{
		{Func: "toYearWeek", Args: []string{"ts"}},
		{Func: "toWeekDay", Args: []string{"ts"}},
		{Func: "toHour", Args: []string{"ts"}},
		{Func: "toYearDay", Args: []string{"ts"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if suffix != "_2024_02_2_04_009" {
		t.Fatalf("bad suffix %q", suffix)
	}

	if suffix, err := GetRowSuffix(row, nil); err != nil || suffix != "" {
		t.Fatalf("no plans should give no suffix, got %q %v", suffix, err)
	}

	_, err = GetRowSuffix(row, []SuffixPlan{{Func: "toCentury", Args: []string{"ts"}}})
	if !errors.Is(err, ErrFuncNotFound) {
		t.Fatalf("expected ErrFuncNotFound, got %v", err)
	}
}
