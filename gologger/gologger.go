package gologger

import (
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

// ReqIDKey holds the request id on http request contexts
const ReqIDKey ctxKey = "reqID"

const serviceName = "bqstream"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.CallerMarshalFunc = shortCaller
	if lvl, ok := levelFromEnv(); ok {
		zerolog.SetGlobalLevel(lvl)
	}

	l := NewLogger()
	zerolog.DefaultContextLogger = &l
}

// shortCaller renders file:line plus the function name without its import path
func shortCaller(pc uintptr, file string, line int) string {
	function := ""
	if fun := runtime.FuncForPC(pc); fun != nil {
		funName := fun.Name()
		if slash := strings.LastIndex(funName, "/"); slash > 0 {
			funName = funName[slash+1:]
		}
		function = " " + funName + "()"
	}
	return file + ":" + strconv.Itoa(line) + function
}

// levelFromEnv reads DEBUG=1 or LOG_LEVEL (trace, debug, info, warn, error)
func levelFromEnv() (zerolog.Level, bool) {
	if os.Getenv("DEBUG") == "1" {
		return zerolog.DebugLevel, true
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.NoLevel, false
	}
	return lvl, true
}

// NewLogger writes JSON lines to stdout, or console output to stderr with PRETTY=1
func NewLogger() zerolog.Logger {
	if os.Getenv("PRETTY") == "1" {
		return newLogger(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return newLogger(os.Stdout)
}

func newLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger().Hook(CallerHook{})
}

// NewComponentLogger is NewLogger with a "component" field, for package level loggers
func NewComponentLogger(component string) zerolog.Logger {
	return NewLogger().With().Str("component", component).Logger()
}

type CallerHook struct{}

func (h CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Caller(3)
}
