package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/datastore"
	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/parquet_accumulator"
	"github.com/danthegoodman1/bqstream/rowbatch"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/danthegoodman1/gojsonutils"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/writer"
)

var (
	logger = gologger.NewComponentLogger("deadletter")
)

const (
	InsertIDColumn      = "_insert_id"
	ErrorReasonColumn   = "_error_reason"
	ErrorLocationColumn = "_error_location"
	ErrorMessageColumn  = "_error_message"
)

type (
	// Writer turns rows the API rejected into a parquet file in a DataStore
	Writer struct {
		store datastore.DataStore
	}
)

func NewWriter(store datastore.DataStore) *Writer {
	return &Writer{store: store}
}

// FileKey is the data store key for a new dead letter file of the table
func FileKey(ref bq.TableRef) string {
	return fmt.Sprintf("project=%s/dataset=%s/table=%s/%s.parquet", ref.ProjectID, ref.DatasetID, ref.TableID, utils.GenKSortedID(""))
}

// Write stores every row listed in errs, including rows the API only stopped,
// since none of them were inserted. Returns the key of the written file, or ""
// when there was nothing to write.
func (w *Writer) Write(ctx context.Context, ref bq.TableRef, batch *rowbatch.RowBatch, errs bq.InsertErrors) (string, error) {
	logger := zerolog.Ctx(ctx)
	rows, err := buildRows(batch, errs)
	if err != nil {
		return "", fmt.Errorf("error in buildRows: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	s := time.Now()
	psa := parquet_accumulator.NewParquetAccumulator()
	for _, row := range rows {
		psa.WriteRow(row)
	}
	parquetSchema, err := psa.GetSchemaString()
	if err != nil {
		return "", fmt.Errorf("error in GetSchemaString: %w", err)
	}

	var buf bytes.Buffer
	pw, err := writer.NewJSONWriterFromWriter(parquetSchema, &buf, 4)
	if err != nil {
		return "", fmt.Errorf("error in NewJSONWriterFromWriter: %w", err)
	}
	for _, row := range rows {
		normalized, err := psa.Normalize(row)
		if err != nil {
			return "", fmt.Errorf("error in Normalize: %w", err)
		}
		b, err := json.Marshal(normalized)
		if err != nil {
			return "", fmt.Errorf("error in json.Marshal: %w", err)
		}
		if err = pw.Write(string(b)); err != nil {
			return "", fmt.Errorf("error in parquet Write: %w", err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return "", fmt.Errorf("error in WriteStop: %w", err)
	}

	key := FileKey(ref)
	size := buf.Len()
	if err = w.store.Put(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("error in store.Put: %w", err)
	}

	d := time.Since(s)
	logger.Info().Str("key", key).Int("rows", len(rows)).Int("bytes", size).Str("durationHuman", d.String()).Msg("wrote dead letter file")
	return key, nil
}

func buildRows(batch *rowbatch.RowBatch, errs bq.InsertErrors) ([]map[string]any, error) {
	entries := batch.Entries()
	var rows []map[string]any
	for _, rowErr := range errs {
		if rowErr.Index < 0 || rowErr.Index >= len(entries) {
			logger.Warn().Int("index", rowErr.Index).Int("batchLen", len(entries)).Msg("insert error for a row outside the batch, skipping")
			continue
		}
		flat, err := gojsonutils.Flatten(entries[rowErr.Index].Row, nil)
		if err != nil {
			return nil, fmt.Errorf("error in gojsonutils.Flatten: %w", err)
		}
		row, ok := flat.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("flattened row %d is a %T", rowErr.Index, flat)
		}

		var reasons, locations, messages []string
		for _, d := range rowErr.Errors {
			reasons = append(reasons, d.Reason)
			locations = append(locations, d.Location)
			messages = append(messages, d.Message)
		}
		if rowErr.InsertID != nil {
			row[InsertIDColumn] = *rowErr.InsertID
		}
		row[ErrorReasonColumn] = strings.Join(reasons, "; ")
		row[ErrorLocationColumn] = strings.Join(locations, "; ")
		row[ErrorMessageColumn] = strings.Join(messages, "; ")
		rows = append(rows, row)
	}
	return rows, nil
}
