package s3_helper

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewComponentLogger("s3_helper")
)

type (
	Config struct {
		Bucket   string
		Region   string
		Endpoint string
		// Credentials defaults to the AWS_* env vars
		Credentials *credentials.Credentials
	}

	Client struct {
		bucket     string
		uploader   *s3manager.Uploader
		downloader *s3manager.Downloader
	}
)

func NewClient(cfg Config) (*Client, error) {
	s3Config := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: cfg.Credentials,
	}
	if s3Config.Credentials == nil {
		s3Config.Credentials = credentials.NewEnvCredentials()
	}
	if cfg.Endpoint != "" {
		s3Config.Endpoint = aws.String(cfg.Endpoint)
		// custom endpoints (minio, localstack) rarely serve virtual host buckets
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	return &Client{
		bucket:     cfg.Bucket,
		uploader:   s3manager.NewUploader(s3Session),
		downloader: s3manager.NewDownloader(s3Session),
	}, nil
}

func NewClientFromEnv() (*Client, error) {
	return NewClient(Config{
		Bucket:   utils.S3_BUCKET_NAME,
		Region:   utils.AWS_DEFAULT_REGION,
		Endpoint: utils.S3_ENDPOINT,
	})
}

func (c *Client) WriteBytes(ctx context.Context, fileName string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {
	logger := zerolog.Ctx(ctx)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(fileName),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := c.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")

	return output, nil
}

func (c *Client) ReadBytes(ctx context.Context, fileName string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err := c.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded file from s3")

	return buf.Bytes(), nil
}
