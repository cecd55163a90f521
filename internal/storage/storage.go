// Package storage wraps the S3-compatible object store holding mastered
// audio files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured indicates object storage credentials are absent.
var ErrNotConfigured = errors.New("object storage not configured")

// Client provides presigned download URLs and direct object streaming.
type Client struct {
	mc     *minio.Client
	bucket string
}

// Options configures the storage client.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New creates a storage client. Connectivity is not verified here; the
// store is only reached when a download is actually served.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{mc: mc, bucket: opts.Bucket}, nil
}

// PresignDownload returns a short-lived GET URL for an object, with a
// response-content-disposition forcing the suggested filename.
func (c *Client) PresignDownload(ctx context.Context, objectPath, fileName string, ttl time.Duration) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	u, err := c.mc.PresignedGetObject(ctx, c.bucket, objectPath, ttl, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	return u.String(), nil
}

// Open returns a reader over the stored object for direct streaming.
// The caller owns the returned reader and must close it.
func (c *Client) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return obj, nil
}
