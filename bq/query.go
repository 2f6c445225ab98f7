package bq

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/danthegoodman1/bqstream/utils"
	bigquery "google.golang.org/api/bigquery/v2"
)

var (
	// ErrJobIncomplete means the query did not finish within the request timeout.
	// Polling the job is left to the caller.
	ErrJobIncomplete = errors.New("query job did not complete within timeout")
	ErrNoSuchColumn  = errors.New("no such column")
	ErrNoCurrentRow  = errors.New("no current row, call NextRow first")
)

const defaultQueryTimeoutMs = 10_000

// ResultSet is a cursor over every row of a query result. Cells are kept as the
// API returns them (strings) and parsed on access.
type ResultSet struct {
	columns []string
	index   map[string]int
	rows    [][]any
	cursor  int
	jobID   string
}

// Query runs a standard SQL query synchronously. When the result spans more than
// one page the remaining pages are fetched with Jobs.GetQueryResults before
// returning, so the ResultSet always holds the full result.
func (c *Client) Query(ctx context.Context, projectID, sql string) (*ResultSet, error) {
	req := &bigquery.QueryRequest{
		Query:        sql,
		UseLegacySql: utils.Ptr(false),
		TimeoutMs:    defaultQueryTimeoutMs,
	}
	resp, err := c.service.Jobs.Query(projectID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error in Jobs.Query: %w", err)
	}
	if !resp.JobComplete {
		return nil, ErrJobIncomplete
	}

	rows := resp.Rows
	var jobID, location string
	if resp.JobReference != nil {
		jobID = resp.JobReference.JobId
		location = resp.JobReference.Location
	}
	for pageToken := resp.PageToken; pageToken != ""; {
		if jobID == "" {
			return nil, errors.New("query result is paged but has no job reference")
		}
		call := c.service.Jobs.GetQueryResults(projectID, jobID).PageToken(pageToken).Context(ctx)
		if location != "" {
			call = call.Location(location)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("error in Jobs.GetQueryResults for job %s: %w", jobID, err)
		}
		rows = append(rows, page.Rows...)
		pageToken = page.PageToken
	}
	if resp.TotalRows > 0 && uint64(len(rows)) != resp.TotalRows {
		return nil, fmt.Errorf("query job %s returned %d of %d rows", jobID, len(rows), resp.TotalRows)
	}

	rs := newResultSet(resp.Schema, rows)
	rs.jobID = jobID
	return rs, nil
}

func newResultSet(s *bigquery.TableSchema, rows []*bigquery.TableRow) *ResultSet {
	rs := &ResultSet{
		index:  map[string]int{},
		cursor: -1,
	}
	if s != nil {
		for i, f := range s.Fields {
			rs.columns = append(rs.columns, f.Name)
			rs.index[f.Name] = i
		}
	}
	for _, row := range rows {
		cells := make([]any, len(rs.columns))
		for i := 0; i < len(row.F) && i < len(cells); i++ {
			if row.F[i] != nil {
				cells[i] = row.F[i].V
			}
		}
		rs.rows = append(rs.rows, cells)
	}
	return rs
}

func (rs *ResultSet) NextRow() bool {
	if rs.cursor+1 >= len(rs.rows) {
		rs.cursor = len(rs.rows)
		return false
	}
	rs.cursor++
	return true
}

func (rs *ResultSet) RowCount() int {
	return len(rs.rows)
}

func (rs *ResultSet) ColumnNames() []string {
	return rs.columns
}

func (rs *ResultSet) JobID() string {
	return rs.jobID
}

func (rs *ResultSet) cell(name string) (any, error) {
	if rs.cursor < 0 || rs.cursor >= len(rs.rows) {
		return nil, ErrNoCurrentRow
	}
	i, ok := rs.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchColumn, name)
	}
	return rs.rows[rs.cursor][i], nil
}

// GetInt64ByName returns nil for a NULL cell
func (rs *ResultSet) GetInt64ByName(name string) (*int64, error) {
	raw, err := rs.cellString(name)
	if err != nil || raw == nil {
		return nil, err
	}
	i, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error in ParseInt for column %s: %w", name, err)
	}
	return &i, nil
}

func (rs *ResultSet) GetFloat64ByName(name string) (*float64, error) {
	raw, err := rs.cellString(name)
	if err != nil || raw == nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, fmt.Errorf("error in ParseFloat for column %s: %w", name, err)
	}
	return &f, nil
}

func (rs *ResultSet) GetBoolByName(name string) (*bool, error) {
	raw, err := rs.cellString(name)
	if err != nil || raw == nil {
		return nil, err
	}
	b, err := strconv.ParseBool(*raw)
	if err != nil {
		return nil, fmt.Errorf("error in ParseBool for column %s: %w", name, err)
	}
	return &b, nil
}

func (rs *ResultSet) GetStringByName(name string) (*string, error) {
	return rs.cellString(name)
}

func (rs *ResultSet) cellString(name string) (*string, error) {
	c, err := rs.cell(name)
	if err != nil || c == nil {
		return nil, err
	}
	switch v := c.(type) {
	case string:
		return &v, nil
	case float64:
		return utils.Ptr(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case bool:
		return utils.Ptr(strconv.FormatBool(v)), nil
	default:
		return nil, fmt.Errorf("column %s holds a %T, not a scalar", name, c)
	}
}
