package bq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danthegoodman1/bqstream/rowbatch"
	"github.com/rs/zerolog"
	bigquery "google.golang.org/api/bigquery/v2"
)

type (
	ErrorDetail struct {
		Reason   string
		Location string
		Message  string
	}

	// RowInsertError is every error the API reported for a single row of a batch
	RowInsertError struct {
		// Index into the batch's entries
		Index    int
		InsertID *string
		Errors   []ErrorDetail
	}

	// InsertErrors is returned by InsertAll when the API rejected some rows. The
	// rows not listed were inserted, unless the request was made without
	// skipInvalidRows, in which case the API rejects the whole batch and marks
	// the valid rows with reason "stopped".
	InsertErrors []RowInsertError
)

func (ie InsertErrors) Error() string {
	if len(ie) == 0 {
		return "no insert errors"
	}
	first := ie[0]
	var msgs []string
	for _, d := range first.Errors {
		msgs = append(msgs, d.Reason+": "+d.Message)
	}
	return fmt.Sprintf("%d rows failed insertion, first at index %d: %s", len(ie), first.Index, strings.Join(msgs, "; "))
}

// InsertAll streams the batch into the table. A nil error means every row was
// accepted; rejected rows come back as InsertErrors; anything else is a transport
// or API error.
func (c *Client) InsertAll(ctx context.Context, ref TableRef, batch *rowbatch.RowBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	logger := zerolog.Ctx(ctx)

	s := time.Now()
	resp, err := c.service.Tabledata.InsertAll(ref.ProjectID, ref.DatasetID, ref.TableID, batch.InsertAllRequest()).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error in Tabledata.InsertAll: %w", err)
	}
	d := time.Since(s)

	if len(resp.InsertErrors) > 0 {
		ie := newInsertErrors(batch, resp.InsertErrors)
		logger.Warn().Str("table", ref.String()).Int("rows", batch.Len()).Int("failedRows", len(ie)).Str("durationHuman", d.String()).Msg("insertAll rejected rows")
		return ie
	}

	logger.Debug().Str("table", ref.String()).Int("rows", batch.Len()).Int("bytes", batch.Bytes()).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("inserted rows")
	return nil
}

func newInsertErrors(batch *rowbatch.RowBatch, apiErrs []*bigquery.TableDataInsertAllResponseInsertErrors) InsertErrors {
	entries := batch.Entries()
	var ie InsertErrors
	for _, apiErr := range apiErrs {
		if apiErr == nil {
			continue
		}
		rowErr := RowInsertError{Index: int(apiErr.Index)}
		if rowErr.Index >= 0 && rowErr.Index < len(entries) {
			rowErr.InsertID = entries[rowErr.Index].InsertID
		}
		for _, e := range apiErr.Errors {
			if e == nil {
				continue
			}
			rowErr.Errors = append(rowErr.Errors, ErrorDetail{
				Reason:   e.Reason,
				Location: e.Location,
				Message:  e.Message,
			})
		}
		ie = append(ie, rowErr)
	}
	return ie
}

// FailedIndexes lists the rows that were actually rejected, leaving out rows the
// API only "stopped" because another row in the batch was invalid
func (ie InsertErrors) FailedIndexes() []int {
	var out []int
	for _, rowErr := range ie {
		stopped := len(rowErr.Errors) > 0
		for _, d := range rowErr.Errors {
			if d.Reason != "stopped" {
				stopped = false
				break
			}
		}
		if !stopped {
			out = append(out, rowErr.Index)
		}
	}
	return out
}
