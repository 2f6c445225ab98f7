package partitioner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danthegoodman1/bqstream/value"
)

type (
	// SuffixPlan is one part of a template table suffix, e.g. {Func: "toYear", Args: ["ts"]}
	SuffixPlan struct {
		Func string   `validate:"required"`
		Args []string `validate:"required,min=1"`
	}

	SuffixFunc func(row *value.Record, args []string) (string, error)
)

var (
	Functions = make(map[string]SuffixFunc)

	ErrFuncNotFound = errors.New("suffix function not found")

	ErrMissingArgs       = errors.New("missing args")
	ErrMissingColumns    = errors.New("missing one or more columns specified in args")
	ErrInvalidColumnType = errors.New("invalid column type")

	// now is swapped in tests
	now = time.Now
)

func init() {
	RegisterFunctions()
}

func timeFunc(format func(t time.Time) string) SuffixFunc {
	return func(row *value.Record, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}
		return format(t), nil
	}
}

func RegisterFunctions() {
	Functions["toYear"] = timeFunc(func(t time.Time) string {
		return fmt.Sprintf("%04d", t.Year())
	})
	Functions["toMonth"] = timeFunc(func(t time.Time) string {
		return fmt.Sprintf("%02d", int(t.Month()))
	})
	Functions["toDay"] = timeFunc(func(t time.Time) string {
		return fmt.Sprintf("%02d", t.Day())
	})
	Functions["toHour"] = timeFunc(func(t time.Time) string {
		return fmt.Sprintf("%02d", t.Hour())
	})
	Functions["toYearDay"] = timeFunc(func(t time.Time) string {
		return fmt.Sprintf("%03d", t.YearDay())
	})
	Functions["toYearWeek"] = timeFunc(func(t time.Time) string {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d_%02d", year, week)
	})
	Functions["toWeekDay"] = timeFunc(func(t time.Time) string {
		return fmt.Sprint(int(t.Weekday()))
	})
}

// GetRowSuffix builds the template suffix for a row, like "_2024_01". No plans
// means no suffix.
func GetRowSuffix(row *value.Record, plans []SuffixPlan) (string, error) {
	if len(plans) == 0 {
		return "", nil
	}
	var parts []string
	for _, plan := range plans {
		f, ok := Functions[plan.Func]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrFuncNotFound, plan.Func)
		}

		s, err := f(row, plan.Args)
		if err != nil {
			return "", fmt.Errorf("error processing suffix function %s: %w", plan.Func, err)
		}
		parts = append(parts, s)
	}
	return "_" + strings.Join(parts, "_"), nil
}

// parseTimeArg resolves the first arg to a UTC time. The arg is either now() or
// a top level field holding a timestamp, an RFC3339 string, or unix millis.
func parseTimeArg(row *value.Record, args []string) (t time.Time, err error) {
	if len(args) == 0 {
		err = ErrMissingArgs
		return
	}

	key := args[0]
	if key == "now()" {
		return now().UTC(), nil
	}

	v, exists := row.Get(key)
	if !exists || v.IsNull() {
		err = fmt.Errorf("%w: %s", ErrMissingColumns, key)
		return
	}

	switch v.Kind() {
	case value.TimestampKind:
		t, _ = v.AsTimestamp()
	case value.StringKind:
		s, _ := v.AsString()
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			err = fmt.Errorf("error in time.Parse for string: %w", err)
			return
		}
	case value.IntKind:
		ms, _ := v.AsInt()
		t = time.UnixMilli(ms)
	case value.FloatKind:
		ms, _ := v.AsFloat()
		t = time.UnixMilli(int64(ms))
	default:
		err = fmt.Errorf("%w: %s is %s", ErrInvalidColumnType, key, v.Kind())
		return
	}
	return t.UTC(), nil
}
