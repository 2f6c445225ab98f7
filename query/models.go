package query

import (
	"time"
)

type InsertBatch struct {
	ProjectID      string
	DatasetID      string
	TableID        string
	ID             string
	TemplateSuffix string
	NumRows        int64
	NumFailedRows  int64
	DeadLetterKey  *string
	CreatedAt      time.Time
}
