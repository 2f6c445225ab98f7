// Package rowbatch accumulates serialized rows and their optional insert ids into a
// bounded batch that is handed to a single streaming insert call.
package rowbatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danthegoodman1/bqstream/schema"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/danthegoodman1/bqstream/value"
	bigquery "google.golang.org/api/bigquery/v2"
)

const (
	// DefaultMaxRows and DefaultMaxBytes are the insertAll per-request limits
	DefaultMaxRows  = 50_000
	DefaultMaxBytes = 10_000_000
)

var (
	ErrBatchFull = errors.New("batch is full")
	ErrFinalized = errors.New("batch already finalized")
)

type (
	Entry struct {
		// InsertID is nil when the row was appended without one
		InsertID *string
		Row      map[string]any
	}

	// RowBatch is the finalized, ordered output of a Builder
	RowBatch struct {
		entries             []Entry
		bytes               int
		skipInvalidRows     bool
		ignoreUnknownValues bool
		templateSuffix      string
	}

	// Builder is not safe for concurrent use
	Builder struct {
		batch     RowBatch
		finalized bool

		maxRows     int
		maxBytes    int
		schema      *schema.TableSchema
		generateIDs bool
	}

	Option func(*Builder)
)

func WithMaxRows(n int) Option {
	return func(b *Builder) {
		b.maxRows = n
	}
}

// WithMaxBytes bounds the summed JSON size of the rows
func WithMaxBytes(n int) Option {
	return func(b *Builder) {
		b.maxBytes = n
	}
}

// WithSchema makes Append check each row's structural shape against s
func WithSchema(s schema.TableSchema) Option {
	return func(b *Builder) {
		b.schema = &s
	}
}

// WithGeneratedInsertIDs gives rows appended without an insert id a random one
func WithGeneratedInsertIDs() Option {
	return func(b *Builder) {
		b.generateIDs = true
	}
}

func WithSkipInvalidRows() Option {
	return func(b *Builder) {
		b.batch.skipInvalidRows = true
	}
}

// WithIgnoreUnknownValues sets the request flag and lets the schema check skip unknown fields
func WithIgnoreUnknownValues() Option {
	return func(b *Builder) {
		b.batch.ignoreUnknownValues = true
	}
}

// WithTemplateSuffix inserts into (and creates if needed) the table named
// <table><suffix>, using the target table's schema as the template
func WithTemplateSuffix(suffix string) Option {
	return func(b *Builder) {
		b.batch.templateSuffix = suffix
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxRows:  DefaultMaxRows,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append serializes row and adds it to the batch with insertID (nil for none).
// On any error the batch is left exactly as it was.
func (b *Builder) Append(insertID *string, row any) error {
	if b.finalized {
		return ErrFinalized
	}
	if len(b.batch.entries) >= b.maxRows {
		return ErrBatchFull
	}

	v, err := value.FromAny(row)
	if err != nil {
		return err
	}
	rec, ok := v.AsRecord()
	if !ok {
		return value.NewSerializationError("", fmt.Sprintf("row must be a record, got %s", v.Kind()))
	}

	if b.schema != nil {
		if err := b.schema.CheckShape(rec, b.batch.ignoreUnknownValues); err != nil {
			return err
		}
	}

	wire, err := rec.Wire()
	if err != nil {
		return err
	}

	// also catches anything encoding/json would refuse at send time
	encoded, err := json.Marshal(wire)
	if err != nil {
		return &value.SerializationError{Reason: "error in json.Marshal", Err: err}
	}
	if b.batch.bytes+len(encoded) > b.maxBytes {
		return ErrBatchFull
	}

	if insertID == nil && b.generateIDs {
		insertID = utils.Ptr(utils.GenRandomID(""))
	} else if insertID != nil {
		insertID = utils.Ptr(*insertID)
	}

	b.batch.entries = append(b.batch.entries, Entry{InsertID: insertID, Row: wire})
	b.batch.bytes += len(encoded)
	return nil
}

func (b *Builder) Len() int {
	return len(b.batch.entries)
}

// Finalize hands off the batch. Further appends fail with ErrFinalized.
func (b *Builder) Finalize() *RowBatch {
	b.finalized = true
	return &b.batch
}

func (rb *RowBatch) Len() int {
	return len(rb.entries)
}

// Entries are in insertion order. The slice must not be modified.
func (rb *RowBatch) Entries() []Entry {
	return rb.entries
}

// Bytes is the summed JSON size of the rows
func (rb *RowBatch) Bytes() int {
	return rb.bytes
}

func (rb *RowBatch) TemplateSuffix() string {
	return rb.templateSuffix
}

// InsertAllRequest builds the tabledata.insertAll request body
func (rb *RowBatch) InsertAllRequest() *bigquery.TableDataInsertAllRequest {
	rows := make([]*bigquery.TableDataInsertAllRequestRows, 0, len(rb.entries))
	for _, e := range rb.entries {
		j := make(map[string]bigquery.JsonValue, len(e.Row))
		for k, v := range e.Row {
			j[k] = v
		}
		rows = append(rows, &bigquery.TableDataInsertAllRequestRows{
			InsertId: utils.Deref(e.InsertID, ""),
			Json:     j,
		})
	}
	return &bigquery.TableDataInsertAllRequest{
		Kind:                "bigquery#tableDataInsertAllRequest",
		Rows:                rows,
		SkipInvalidRows:     rb.skipInvalidRows,
		IgnoreUnknownValues: rb.ignoreUnknownValues,
		TemplateSuffix:      rb.templateSuffix,
	}
}
