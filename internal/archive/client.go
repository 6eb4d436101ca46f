// Package archive uploads exported result files to S3-compatible object
// storage such as AWS S3 or Cloudflare R2.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by uploads when no bucket is configured.
var ErrDisabled = errors.New("archive disabled")

// Config holds object storage settings. An empty Bucket disables the archive.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for R2 or MinIO; empty for AWS
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Client uploads files to one bucket
type Client struct {
	cfg      Config
	s3       *s3.Client
	uploader *manager.Uploader
	log      zerolog.Logger
}

// NewClient builds a client. With no bucket it returns a disabled client and
// makes no SDK calls.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	c := &Client{
		cfg: cfg,
		log: log.With().Str("component", "archive").Logger(),
	}
	if cfg.Bucket == "" {
		c.log.Info().Msg("Archive disabled (no bucket configured)")
		return c, nil
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
		c.cfg.Region = cfg.Region
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	c.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	c.uploader = manager.NewUploader(c.s3)

	c.log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("Archive enabled")
	return c, nil
}

// Enabled reports whether uploads go anywhere.
func (c *Client) Enabled() bool {
	return c != nil && c.uploader != nil
}

// Key joins the configured prefix and name into an object key.
func (c *Client) Key(name string) string {
	prefix := strings.Trim(c.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload stores body under the prefixed key and returns its location.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	key := c.Key(name)
	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	c.log.Info().Str("key", key).Str("location", out.Location).Msg("Uploaded file")
	return out.Location, nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".gz":
		return "application/gzip"
	}
	return "application/octet-stream"
}

// List returns the object keys under the configured prefix.
func (c *Client) List(ctx context.Context) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.cfg.Bucket)}
	if prefix := strings.Trim(c.cfg.Prefix, "/"); prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
