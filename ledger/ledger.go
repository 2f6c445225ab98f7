package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/query"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewComponentLogger("ledger")

	ErrDuplicateBatch = errors.New("batch already recorded")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	uniqueViolation = "23505"
)

type (
	// Ledger records every batch sent to BigQuery in CockroachDB
	Ledger struct {
		pool       *pgxpool.Pool
		tryTimeout time.Duration
	}

	Batch struct {
		ID             string
		Table          bq.TableRef
		TemplateSuffix string
		Rows           int
		FailedRows     int
		// DeadLetterKey is empty when nothing was dead lettered
		DeadLetterKey string
		CreatedAt     time.Time
	}
)

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{
		pool:       pool,
		tryTimeout: time.Second * 10,
	}
}

// RecordBatch stores b, generating its ID when empty, and returns the ID
func (l *Ledger) RecordBatch(ctx context.Context, b Batch) (string, error) {
	if b.ID == "" {
		b.ID = utils.GenKSortedID("")
	}
	params := query.InsertBatchParams{
		ProjectID:      b.Table.ProjectID,
		DatasetID:      b.Table.DatasetID,
		TableID:        b.Table.TableID,
		ID:             b.ID,
		TemplateSuffix: b.TemplateSuffix,
		NumRows:        int64(b.Rows),
		NumFailedRows:  int64(b.FailedRows),
	}
	if b.DeadLetterKey != "" {
		params.DeadLetterKey = &b.DeadLetterKey
	}

	err := utils.ReliableExecInTx(ctx, l.pool, l.tryTimeout, func(ctx context.Context, tx pgx.Tx) error {
		err := query.New(tx).InsertBatch(ctx, params)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return utils.PermError(ErrDuplicateBatch.Error())
		}
		return err
	})
	if utils.IsPermError(err) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateBatch, b.ID)
	}
	if err != nil {
		return "", fmt.Errorf("error in InsertBatch: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("batchID", b.ID).Str("table", b.Table.String()).Int("rows", b.Rows).Int("failedRows", b.FailedRows).Msg("recorded batch")
	return b.ID, nil
}

// ListBatches returns the newest batches of a table first. limit is clamped to
// [1, MaxListLimit], 0 means DefaultListLimit.
func (l *Ledger) ListBatches(ctx context.Context, ref bq.TableRef, limit int) ([]Batch, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	var rows []query.InsertBatch
	err := utils.ReliableExec(ctx, l.pool, l.tryTimeout, func(ctx context.Context, conn *pgxpool.Conn) (err error) {
		rows, err = query.New(conn).ListBatches(ctx, query.ListBatchesParams{
			ProjectID: ref.ProjectID,
			DatasetID: ref.DatasetID,
			TableID:   ref.TableID,
			Limit:     int64(limit),
		})
		return
	})
	if err != nil {
		return nil, fmt.Errorf("error in ListBatches: %w", err)
	}

	batches := make([]Batch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, Batch{
			ID: row.ID,
			Table: bq.TableRef{
				ProjectID: row.ProjectID,
				DatasetID: row.DatasetID,
				TableID:   row.TableID,
			},
			TemplateSuffix: row.TemplateSuffix,
			Rows:           int(row.NumRows),
			FailedRows:     int(row.NumFailedRows),
			DeadLetterKey:  utils.Deref(row.DeadLetterKey, ""),
			CreatedAt:      row.CreatedAt,
		})
	}
	return batches, nil
}
