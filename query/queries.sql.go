package query

import (
	"context"
)

const insertBatch = `-- name: InsertBatch :exec
INSERT INTO insert_batches (project_id, dataset_id, table_id, id, template_suffix, num_rows, num_failed_rows, dead_letter_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertBatchParams struct {
	ProjectID      string
	DatasetID      string
	TableID        string
	ID             string
	TemplateSuffix string
	NumRows        int64
	NumFailedRows  int64
	DeadLetterKey  *string
}

func (q *Queries) InsertBatch(ctx context.Context, arg InsertBatchParams) error {
	_, err := q.db.Exec(ctx, insertBatch,
		arg.ProjectID,
		arg.DatasetID,
		arg.TableID,
		arg.ID,
		arg.TemplateSuffix,
		arg.NumRows,
		arg.NumFailedRows,
		arg.DeadLetterKey,
	)
	return err
}

const listBatches = `-- name: ListBatches :many
SELECT project_id, dataset_id, table_id, id, template_suffix, num_rows, num_failed_rows, dead_letter_key, created_at
FROM insert_batches
WHERE project_id = $1 AND dataset_id = $2 AND table_id = $3
ORDER BY id DESC
LIMIT $4
`

type ListBatchesParams struct {
	ProjectID string
	DatasetID string
	TableID   string
	Limit     int64
}

func (q *Queries) ListBatches(ctx context.Context, arg ListBatchesParams) ([]InsertBatch, error) {
	rows, err := q.db.Query(ctx, listBatches,
		arg.ProjectID,
		arg.DatasetID,
		arg.TableID,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InsertBatch
	for rows.Next() {
		var i InsertBatch
		if err := rows.Scan(
			&i.ProjectID,
			&i.DatasetID,
			&i.TableID,
			&i.ID,
			&i.TemplateSuffix,
			&i.NumRows,
			&i.NumFailedRows,
			&i.DeadLetterKey,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
