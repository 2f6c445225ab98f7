package value

import (
	"fmt"
	"strconv"
)

// SerializationError is returned when a value cannot be put into the wire shape.
// Path is the dotted field path to the offending value, with list indexes in brackets.
type SerializationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Path == "" {
		return "serialization error: " + msg
	}
	return fmt.Sprintf("serialization error at %s: %s", e.Path, msg)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func NewSerializationError(path, reason string) *SerializationError {
	return &SerializationError{Path: path, Reason: reason}
}

func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func IndexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}
