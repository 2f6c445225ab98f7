package http_server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/ledger"
	"github.com/danthegoodman1/bqstream/partitioner"
	"github.com/danthegoodman1/bqstream/rowbatch"
	"github.com/danthegoodman1/bqstream/value"
	"github.com/rs/zerolog"
)

type (
	InsertReqBody struct {
		Project string `validate:"required"`
		Dataset string `validate:"required"`
		Table   string `validate:"required"`

		// Line-delimited JSON (NDJSON)
		RowsString *string
		// Array of JSON
		Rows []map[string]any

		// InsertIDColumn names a top level field whose value becomes the row's insert id
		InsertIDColumn      string
		SkipInvalidRows     bool
		IgnoreUnknownValues bool
		Suffix              []partitioner.SuffixPlan `validate:"dive"`
	}

	// InsertStats counts what reached BigQuery. Batches are sent in order and
	// the first batch BigQuery could not take stops the request: FailedBatch is
	// its index and UnsentRows counts it plus everything after it, so a retry
	// resends only those rows.
	InsertStats struct {
		NumRows        int64
		NumBatches     int64
		FailedRows     int64
		DeadLetterKeys []string
		BatchIDs       []string
		TimeMS         int64

		FailedBatch *int   `json:",omitempty"`
		UnsentRows  int64  `json:",omitempty"`
		Error       string `json:",omitempty"`
		// Errors lists dead letter and ledger failures for batches that were inserted
		Errors []string `json:",omitempty"`
	}

	pendingRow struct {
		insertID *string
		row      *value.Record
	}
)

var (
	ErrNoRows = errors.New("no rows found")
)

func (s *HTTPServer) InsertHandler(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*60)
	defer cancel()
	logger := zerolog.Ctx(ctx)

	start := time.Now()

	var reqBody InsertReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	defer c.Request().Body.Close()

	rows, err := reqBody.decodeRows()
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if len(rows) == 0 {
		return c.String(http.StatusBadRequest, ErrNoRows.Error())
	}

	// Group rows by template suffix, keeping the order suffixes first appear in
	var suffixes []string
	bySuffix := map[string][]pendingRow{}
	for i, row := range rows {
		suffix, err := partitioner.GetRowSuffix(row.row, reqBody.Suffix)
		if err != nil {
			return c.String(http.StatusBadRequest, fmt.Sprintf("row %d: %s", i, err))
		}
		if _, exists := bySuffix[suffix]; !exists {
			suffixes = append(suffixes, suffix)
		}
		bySuffix[suffix] = append(bySuffix[suffix], row)
	}

	var batches []*rowbatch.RowBatch
	for _, suffix := range suffixes {
		suffixBatches, err := s.buildBatches(reqBody, suffix, bySuffix[suffix])
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		batches = append(batches, suffixBatches...)
	}

	ref := bq.TableRef{
		ProjectID: reqBody.Project,
		DatasetID: reqBody.Dataset,
		TableID:   reqBody.Table,
	}
	c.WithTable(ref)
	stats := InsertStats{
		DeadLetterKeys: []string{},
		BatchIDs:       []string{},
	}
	for i, batch := range batches {
		entry := ledger.Batch{
			Table:          ref,
			TemplateSuffix: batch.TemplateSuffix(),
			Rows:           batch.Len(),
		}

		err := s.deps.Inserter.InsertAll(ctx, ref, batch)
		var insertErrs bq.InsertErrors
		if err != nil && !errors.As(err, &insertErrs) {
			failed := i
			stats.FailedBatch = &failed
			for _, unsent := range batches[i:] {
				stats.UnsentRows += int64(unsent.Len())
			}
			status := http.StatusInternalServerError
			if bq.IsNotFound(err) {
				status = http.StatusNotFound
				stats.Error = fmt.Sprintf("table %s not found", ref)
			} else {
				stats.Error = c.LogInternalError(err, fmt.Sprintf("error inserting batch %d", i))
			}
			stats.TimeMS = time.Since(start).Milliseconds()
			return c.JSON(status, stats)
		}

		if len(insertErrs) > 0 {
			entry.FailedRows = len(insertErrs)
			if s.deps.DeadLetter != nil {
				entry.DeadLetterKey, err = s.deps.DeadLetter.Write(ctx, ref, batch, insertErrs)
				if err != nil {
					stats.Errors = append(stats.Errors, c.LogInternalError(err, fmt.Sprintf("error writing dead letter file for batch %d", i)))
				} else if entry.DeadLetterKey != "" {
					stats.DeadLetterKeys = append(stats.DeadLetterKeys, entry.DeadLetterKey)
				}
			} else {
				logger.Warn().Err(insertErrs).Msg("dropping rejected rows, no dead letter store configured")
			}
		}

		stats.NumRows += int64(batch.Len())
		stats.FailedRows += int64(entry.FailedRows)
		stats.NumBatches++

		if s.deps.Ledger != nil {
			id, err := s.deps.Ledger.RecordBatch(ctx, entry)
			if err != nil {
				stats.Errors = append(stats.Errors, c.LogInternalError(err, fmt.Sprintf("error recording batch %d", i)))
				continue
			}
			stats.BatchIDs = append(stats.BatchIDs, id)
		}
	}

	stats.TimeMS = time.Since(start).Milliseconds()
	logger.Debug().Interface("stats", stats).Msg("inserted rows")

	return c.JSON(http.StatusAccepted, stats)
}

// decodeRows reads Rows or RowsString into records, pulling out insert ids
func (body InsertReqBody) decodeRows() ([]pendingRow, error) {
	var rows []pendingRow
	add := func(i int, m map[string]any) error {
		rec, err := value.RecordFromMap(m)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		pr := pendingRow{row: rec}
		if body.InsertIDColumn != "" {
			pr.insertID, err = insertIDOf(rec, body.InsertIDColumn)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		rows = append(rows, pr)
		return nil
	}

	if body.RowsString != nil {
		ndJSONScanner := bufio.NewScanner(strings.NewReader(*body.RowsString))
		ndJSONScanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		i := 0
		for ndJSONScanner.Scan() {
			line := strings.TrimSpace(ndJSONScanner.Text())
			if line == "" {
				continue
			}
			dec := json.NewDecoder(strings.NewReader(line))
			dec.UseNumber()
			var jsonMap map[string]any
			if err := dec.Decode(&jsonMap); err != nil {
				return nil, fmt.Errorf("line %d was not a JSON object: %w", i, err)
			}
			if err := add(i, jsonMap); err != nil {
				return nil, err
			}
			i++
		}
		if err := ndJSONScanner.Err(); err != nil {
			return nil, fmt.Errorf("error scanning rows: %w", err)
		}
	}
	for i, row := range body.Rows {
		if err := add(i, row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func insertIDOf(rec *value.Record, column string) (*string, error) {
	v, exists := rec.Get(column)
	if !exists || v.IsNull() {
		return nil, nil
	}
	switch v.Kind() {
	case value.StringKind:
		s, _ := v.AsString()
		return &s, nil
	case value.IntKind:
		i, _ := v.AsInt()
		s := fmt.Sprint(i)
		return &s, nil
	default:
		return nil, fmt.Errorf("insert id column %s is %s, not a string or integer", column, v.Kind())
	}
}

// buildBatches splits rows into as many bounded batches as they need
func (s *HTTPServer) buildBatches(body InsertReqBody, suffix string, rows []pendingRow) ([]*rowbatch.RowBatch, error) {
	opts := []rowbatch.Option{rowbatch.WithTemplateSuffix(suffix)}
	if s.deps.MaxBatchRows > 0 {
		opts = append(opts, rowbatch.WithMaxRows(s.deps.MaxBatchRows))
	}
	if s.deps.MaxBatchBytes > 0 {
		opts = append(opts, rowbatch.WithMaxBytes(s.deps.MaxBatchBytes))
	}
	if s.deps.GenerateInsertIDs {
		opts = append(opts, rowbatch.WithGeneratedInsertIDs())
	}
	if body.SkipInvalidRows {
		opts = append(opts, rowbatch.WithSkipInvalidRows())
	}
	if body.IgnoreUnknownValues {
		opts = append(opts, rowbatch.WithIgnoreUnknownValues())
	}

	var batches []*rowbatch.RowBatch
	b := rowbatch.NewBuilder(opts...)
	for i, row := range rows {
		err := b.Append(row.insertID, row.row)
		if errors.Is(err, rowbatch.ErrBatchFull) && b.Len() > 0 {
			batches = append(batches, b.Finalize())
			b = rowbatch.NewBuilder(opts...)
			err = b.Append(row.insertID, row.row)
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if b.Len() > 0 {
		batches = append(batches, b.Finalize())
	}
	return batches, nil
}
