package http_server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/ledger"
	"github.com/danthegoodman1/bqstream/rowbatch"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

type (
	fakeInserter struct {
		mu      sync.Mutex
		batches []*rowbatch.RowBatch
		refs    []bq.TableRef
		// rejects maps a batch number to the errors returned for it
		rejects map[int]bq.InsertErrors
		// fails maps a batch number to a request level error
		fails map[int]error
	}

	fakeDeadLetter struct {
		rows int
	}

	fakeLedger struct {
		recorded []ledger.Batch
	}
)

func (f *fakeInserter) InsertAll(_ context.Context, ref bq.TableRef, batch *rowbatch.RowBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.batches)
	f.batches = append(f.batches, batch)
	f.refs = append(f.refs, ref)
	if ie, ok := f.rejects[n]; ok {
		return ie
	}
	if err, ok := f.fails[n]; ok {
		return err
	}
	return nil
}

func (f *fakeDeadLetter) Write(_ context.Context, ref bq.TableRef, _ *rowbatch.RowBatch, errs bq.InsertErrors) (string, error) {
	f.rows += len(errs)
	return "project=" + ref.ProjectID + "/dead.parquet", nil
}

func (f *fakeLedger) RecordBatch(_ context.Context, b ledger.Batch) (string, error) {
	f.recorded = append(f.recorded, b)
	return utils.GenKSortedID(""), nil
}

func (f *fakeLedger) ListBatches(_ context.Context, ref bq.TableRef, limit int) ([]ledger.Batch, error) {
	var out []ledger.Batch
	for _, b := range f.recorded {
		if b.Table == ref {
			out = append(out, b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func doRequest(t *testing.T, s *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeStats(t *testing.T, rec *httptest.ResponseRecorder) InsertStats {
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats InsertStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	return stats
}

func TestHealthCheck(t *testing.T) {
	s := NewHTTPServer(Deps{Inserter: &fakeInserter{}})
	rec := doRequest(t, s, http.MethodGet, "/hc", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("bad health check %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

func TestInsertRows(t *testing.T) {
	ins := &fakeInserter{}
	l := &fakeLedger{}
	s := NewHTTPServer(Deps{Inserter: ins, Ledger: l, MaxBatchRows: 2})

	rec := doRequest(t, s, http.MethodPost, "/insert", `{
		"Project": "p", "Dataset": "d", "Table": "t",
		"InsertIDColumn": "id",
		"SkipInvalidRows": true,
		"Rows": [
			{"id": "a", "n": 1, "big": 9007199254740993},
			{"id": "b", "n": 2.5, "r": {"s": "x"}},
			{"id": 3, "n": 3}
		]
	}`)
	stats := decodeStats(t, rec)

	if stats.NumRows != 3 || stats.NumBatches != 2 || stats.FailedRows != 0 {
		t.Fatalf("bad stats %+v", stats)
	}
	if len(ins.batches) != 2 || ins.batches[0].Len() != 2 || ins.batches[1].Len() != 1 {
		t.Fatal("rows not split by MaxBatchRows")
	}
	if ins.refs[0] != (bq.TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"}) {
		t.Fatalf("bad table ref %+v", ins.refs[0])
	}

	first := ins.batches[0].Entries()[0]
	if first.InsertID == nil || *first.InsertID != "a" {
		t.Fatalf("insert id not taken from column: %v", first.InsertID)
	}
	if first.Row["big"] != int64(9007199254740993) {
		t.Fatalf("large integer lost precision: %v", first.Row["big"])
	}
	if id := ins.batches[1].Entries()[0].InsertID; id == nil || *id != "3" {
		t.Fatalf("integer insert id not converted: %v", id)
	}
	if !ins.batches[0].InsertAllRequest().SkipInvalidRows {
		t.Fatal("skipInvalidRows not carried")
	}

	if len(l.recorded) != 2 || len(stats.BatchIDs) != 2 {
		t.Fatalf("batches not recorded: %+v", l.recorded)
	}
}

func TestInsertNDJSONWithSuffix(t *testing.T) {
	ins := &fakeInserter{}
	s := NewHTTPServer(Deps{Inserter: ins})

	body, _ := json.Marshal(map[string]any{
		"Project":    "p",
		"Dataset":    "d",
		"Table":      "events",
		"RowsString": "{\"ts\": \"2024-01-02T03:04:05Z\", \"v\": 1}\n\n{\"ts\": \"2024-02-02T03:04:05Z\", \"v\": 2}\n{\"ts\": \"2024-01-09T00:00:00Z\", \"v\": 3}\n",
		"Suffix": []map[string]any{
			{"Func": "toYear", "Args": []string{"ts"}},
			{"Func": "toMonth", "Args": []string{"ts"}},
		},
	})
	stats := decodeStats(t, doRequest(t, s, http.MethodPost, "/insert", string(body)))

	if stats.NumRows != 3 || stats.NumBatches != 2 {
		t.Fatalf("bad stats %+v", stats)
	}
	if ins.batches[0].TemplateSuffix() != "_2024_01" || ins.batches[0].Len() != 2 {
		t.Fatalf("bad first suffix batch %q %d", ins.batches[0].TemplateSuffix(), ins.batches[0].Len())
	}
	if ins.batches[1].TemplateSuffix() != "_2024_02" {
		t.Fatalf("bad second suffix %q", ins.batches[1].TemplateSuffix())
	}
}

func TestInsertDeadLetters(t *testing.T) {
	ins := &fakeInserter{rejects: map[int]bq.InsertErrors{
		0: {{Index: 1, Errors: []bq.ErrorDetail{{Reason: "invalid", Message: "no such field"}}}},
	}}
	dl := &fakeDeadLetter{}
	l := &fakeLedger{}
	s := NewHTTPServer(Deps{Inserter: ins, DeadLetter: dl, Ledger: l})

	stats := decodeStats(t, doRequest(t, s, http.MethodPost, "/insert", `{
		"Project": "p", "Dataset": "d", "Table": "t",
		"Rows": [{"a": 1}, {"nope": 2}]
	}`))

	if stats.FailedRows != 1 || dl.rows != 1 {
		t.Fatalf("rejected row not dead lettered: %+v", stats)
	}
	if len(stats.DeadLetterKeys) != 1 || stats.DeadLetterKeys[0] != "project=p/dead.parquet" {
		t.Fatalf("bad dead letter keys %v", stats.DeadLetterKeys)
	}
	if l.recorded[0].FailedRows != 1 || l.recorded[0].DeadLetterKey != "project=p/dead.parquet" {
		t.Fatalf("ledger entry missing failure %+v", l.recorded[0])
	}
}

func TestInsertBadRequests(t *testing.T) {
	ins := &fakeInserter{}
	s := NewHTTPServer(Deps{Inserter: ins})

	cases := map[string]string{
		"missing table": `{"Project": "p", "Dataset": "d", "Rows": [{"a": 1}]}`,
		"no rows":       `{"Project": "p", "Dataset": "d", "Table": "t"}`,
		"bad ndjson":    `{"Project": "p", "Dataset": "d", "Table": "t", "RowsString": "[1,2]"}`,
		"nested list":   `{"Project": "p", "Dataset": "d", "Table": "t", "Rows": [{"a": [[1]]}]}`,
		"bad suffix":    `{"Project": "p", "Dataset": "d", "Table": "t", "Rows": [{"a": 1}], "Suffix": [{"Func": "toYear", "Args": ["ts"]}]}`,
		"bad insert id": `{"Project": "p", "Dataset": "d", "Table": "t", "InsertIDColumn": "a", "Rows": [{"a": true}]}`,
	}
	for name, body := range cases {
		rec := doRequest(t, s, http.MethodPost, "/insert", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}
	if len(ins.batches) != 0 {
		t.Fatal("bad requests reached the inserter")
	}
}

func TestInsertRowTooLarge(t *testing.T) {
	s := NewHTTPServer(Deps{Inserter: &fakeInserter{}, MaxBatchBytes: 10})
	rec := doRequest(t, s, http.MethodPost, "/insert", `{"Project": "p", "Dataset": "d", "Table": "t", "Rows": [{"a": "0123456789"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListBatches(t *testing.T) {
	ref := bq.TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"}
	l := &fakeLedger{recorded: []ledger.Batch{
		{ID: "1", Table: ref, Rows: 2},
		{ID: "2", Table: ref, Rows: 3},
		{ID: "3", Table: bq.TableRef{ProjectID: "p", DatasetID: "d", TableID: "other"}},
	}}
	s := NewHTTPServer(Deps{Inserter: &fakeInserter{}, Ledger: l})

	rec := doRequest(t, s, http.MethodGet, "/batches/p/d/t?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var batches []ledger.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &batches); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].ID != "1" {
		t.Fatalf("bad batches %+v", batches)
	}

	if rec := doRequest(t, s, http.MethodGet, "/batches/p/d/t?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}

	s = NewHTTPServer(Deps{Inserter: &fakeInserter{}})
	if rec := doRequest(t, s, http.MethodGet, "/batches/p/d/t", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a ledger, got %d", rec.Code)
	}
}

func TestInsertStopsAtFailedBatch(t *testing.T) {
	ins := &fakeInserter{fails: map[int]error{1: errors.New("connection reset")}}
	l := &fakeLedger{}
	s := NewHTTPServer(Deps{Inserter: ins, Ledger: l, MaxBatchRows: 1})

	rec := doRequest(t, s, http.MethodPost, "/insert", `{
		"Project": "p", "Dataset": "d", "Table": "t",
		"Rows": [{"n": 1}, {"n": 2}, {"n": 3}]
	}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats InsertStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("partial failure should still return stats: %s", rec.Body.String())
	}
	if stats.NumRows != 1 || stats.NumBatches != 1 || len(stats.BatchIDs) != 1 {
		t.Fatalf("first batch not reported as inserted: %+v", stats)
	}
	if stats.FailedBatch == nil || *stats.FailedBatch != 1 || stats.UnsentRows != 2 {
		t.Fatalf("failed batch not reported: %+v", stats)
	}
	if !strings.Contains(stats.Error, rec.Header().Get("X-Request-Id")) {
		t.Fatalf("error should carry the request id: %q", stats.Error)
	}
	if len(ins.batches) != 2 || len(l.recorded) != 1 {
		t.Fatal("batches after the failed one should not be sent")
	}
}

func TestInsertMissingTableReportsStats(t *testing.T) {
	ins := &fakeInserter{fails: map[int]error{0: &googleapi.Error{Code: http.StatusNotFound}}}
	s := NewHTTPServer(Deps{Inserter: ins, MaxBatchRows: 1})

	rec := doRequest(t, s, http.MethodPost, "/insert", `{
		"Project": "p", "Dataset": "d", "Table": "gone",
		"Rows": [{"n": 1}, {"n": 2}]
	}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats InsertStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.NumRows != 0 || stats.FailedBatch == nil || *stats.FailedBatch != 0 || stats.UnsentRows != 2 {
		t.Fatalf("bad stats %+v", stats)
	}
	if stats.Error != "table p.d.gone not found" {
		t.Fatalf("bad error %q", stats.Error)
	}
}

type failingLedger struct{}

func (failingLedger) RecordBatch(context.Context, ledger.Batch) (string, error) {
	return "", errors.New("ledger down")
}

func (failingLedger) ListBatches(context.Context, bq.TableRef, int) ([]ledger.Batch, error) {
	return nil, nil
}

func TestInsertLedgerFailureKeepsInsertedRows(t *testing.T) {
	ins := &fakeInserter{}
	s := NewHTTPServer(Deps{Inserter: ins, Ledger: failingLedger{}, MaxBatchRows: 1})

	stats := decodeStats(t, doRequest(t, s, http.MethodPost, "/insert", `{
		"Project": "p", "Dataset": "d", "Table": "t",
		"Rows": [{"n": 1}, {"n": 2}]
	}`))
	if stats.NumRows != 2 || stats.NumBatches != 2 || stats.FailedBatch != nil {
		t.Fatalf("inserted rows not reported: %+v", stats)
	}
	if len(stats.Errors) != 2 || !strings.Contains(stats.Errors[1], "error recording batch 1") {
		t.Fatalf("ledger failures not reported: %v", stats.Errors)
	}
}

func TestWithTableTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(l.WithContext(req.Context()))
	cc := &CustomContext{Context: echo.New().NewContext(req, httptest.NewRecorder()), RequestID: "req_1"}

	cc.WithTable(bq.TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"})
	if cc.Table == nil || cc.Table.TableID != "t" {
		t.Fatalf("table not set: %+v", cc.Table)
	}

	msg := cc.LogInternalError(errors.New("boom"), "error inserting batch 0")
	if msg != "error inserting batch 0, internal error, request id: req_1" {
		t.Fatalf("bad client message %q", msg)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("bad log line %q: %s", buf.String(), err)
	}
	if line["table"] != "p.d.t" || line["error"] != "boom" {
		t.Fatalf("log line missing table: %v", line)
	}
}
