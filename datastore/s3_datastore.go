package datastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/danthegoodman1/bqstream/s3_helper"
)

type (
	S3DataStore struct {
		client *s3_helper.Client
		prefix string
	}
)

// NewS3DataStore stores every key under prefix in the client's bucket
func NewS3DataStore(client *s3_helper.Client, prefix string) *S3DataStore {
	return &S3DataStore{
		client: client,
		prefix: prefix,
	}
}

func (sds *S3DataStore) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := sds.client.WriteBytes(ctx, sds.prefix+key, r, aws.String("application/octet-stream"))
	if err != nil {
		return fmt.Errorf("error in WriteBytes: %w", err)
	}
	return nil
}

func (sds *S3DataStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := sds.client.ReadBytes(ctx, sds.prefix+key)
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error in ReadBytes: %w", err)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (sds *S3DataStore) Shutdown(context.Context) error {
	return nil
}
