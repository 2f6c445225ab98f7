package bq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/schema"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/rs/zerolog"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	logger = gologger.NewComponentLogger("bq")
)

type (
	// Client wraps the BigQuery REST service for the handful of resources we touch
	Client struct {
		service *bigquery.Service
	}

	TableRef struct {
		ProjectID string
		DatasetID string
		TableID   string
	}
)

func (t TableRef) String() string {
	return fmt.Sprintf("%s.%s.%s", t.ProjectID, t.DatasetID, t.TableID)
}

// NewClient creates a client, passing opts through to the API client
// (credentials, endpoint, http client).
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithScopes(bigquery.BigqueryScope)}, opts...)
	service, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error in bigquery.NewService: %w", err)
	}
	return &Client{service: service}, nil
}

// NewClientFromEnv builds a client from GOOGLE_APPLICATION_CREDENTIALS and BQ_ENDPOINT
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	var opts []option.ClientOption
	if utils.GOOGLE_APPLICATION_CREDENTIALS != "" {
		opts = append(opts, option.WithCredentialsFile(utils.GOOGLE_APPLICATION_CREDENTIALS))
	}
	if utils.BQ_ENDPOINT != "" {
		opts = append(opts, option.WithEndpoint(utils.BQ_ENDPOINT), option.WithoutAuthentication())
	}
	return NewClient(ctx, opts...)
}

func (c *Client) CreateDataset(ctx context.Context, projectID, datasetID string) (*bigquery.Dataset, error) {
	logger := zerolog.Ctx(ctx)
	ds := &bigquery.Dataset{
		DatasetReference: &bigquery.DatasetReference{
			ProjectId: projectID,
			DatasetId: datasetID,
		},
	}
	s := time.Now()
	created, err := c.service.Datasets.Insert(projectID, ds).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error in Datasets.Insert: %w", err)
	}
	logger.Debug().Str("dataset", datasetID).Str("durationHuman", time.Since(s).String()).Msg("created dataset")
	return created, nil
}

// DeleteDataset deletes a dataset. Without deleteContents the dataset must be empty.
func (c *Client) DeleteDataset(ctx context.Context, projectID, datasetID string, deleteContents bool) error {
	err := c.service.Datasets.Delete(projectID, datasetID).DeleteContents(deleteContents).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error in Datasets.Delete: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("dataset", datasetID).Bool("deleteContents", deleteContents).Msg("deleted dataset")
	return nil
}

func (c *Client) CreateTable(ctx context.Context, ref TableRef, s schema.TableSchema) (*bigquery.Table, error) {
	t := &bigquery.Table{
		TableReference: &bigquery.TableReference{
			ProjectId: ref.ProjectID,
			DatasetId: ref.DatasetID,
			TableId:   ref.TableID,
		},
		Schema: s.ToAPI(),
	}
	created, err := c.service.Tables.Insert(ref.ProjectID, ref.DatasetID, t).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error in Tables.Insert: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("table", ref.String()).Msg("created table")
	return created, nil
}

// GetTableSchema fetches the current schema of a table
func (c *Client) GetTableSchema(ctx context.Context, ref TableRef) (schema.TableSchema, error) {
	t, err := c.service.Tables.Get(ref.ProjectID, ref.DatasetID, ref.TableID).Context(ctx).Do()
	if err != nil {
		return schema.TableSchema{}, fmt.Errorf("error in Tables.Get: %w", err)
	}
	return schema.FromAPI(t.Schema), nil
}

func (c *Client) DeleteTable(ctx context.Context, ref TableRef) error {
	err := c.service.Tables.Delete(ref.ProjectID, ref.DatasetID, ref.TableID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error in Tables.Delete: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("table", ref.String()).Msg("deleted table")
	return nil
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsAlreadyExists(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
