package datastore

import (
	"context"
	"errors"
	"io"

	"github.com/danthegoodman1/bqstream/gologger"
)

var (
	logger = gologger.NewComponentLogger("datastore")

	ErrNotFound = errors.New("object not found")
)

type (
	// DataStore holds dead letter files by key, keys use / as the separator
	DataStore interface {
		Put(ctx context.Context, key string, r io.Reader) error
		// Get returns ErrNotFound for a missing key
		Get(ctx context.Context, key string) (io.ReadCloser, error)

		Shutdown(ctx context.Context) error
	}
)
