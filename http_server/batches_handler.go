package http_server

import (
	"net/http"
	"strconv"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/utils"
)

func (s *HTTPServer) ListBatchesHandler(c *CustomContext) error {
	if s.deps.Ledger == nil {
		return c.String(http.StatusNotFound, "batch ledger not configured")
	}

	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 0 {
			return c.String(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}

	ref := bq.TableRef{
		ProjectID: c.Param("project"),
		DatasetID: c.Param("dataset"),
		TableID:   c.Param("table"),
	}
	c.WithTable(ref)
	batches, err := s.deps.Ledger.ListBatches(c.Request().Context(), ref, limit)
	if err != nil {
		return c.InternalError(err, "error listing batches")
	}

	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(batches))
}
