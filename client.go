// Package s3client provides client initialization and configuration.
package s3client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/cloudnepal/mountpoint-s3/errors"
	"github.com/cloudnepal/mountpoint-s3/internal/s3api"
	"github.com/cloudnepal/mountpoint-s3/internal/transfer"
	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// Client issues streaming and single-shot object uploads against S3.
// It is safe for concurrent use; each PutObject call produces an independent
// UploadSession.
type Client struct {
	// engine drives multipart uploads over the S3 API
	engine *transfer.Engine

	// logger receives client diagnostics
	logger *slog.Logger

	// fs is the filesystem abstraction for file-backed uploads
	fs fs.Filesystem
}

// New creates a new upload client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := s3client.New(
//	    s3client.WithRegion("us-west-2"),
//	    s3client.WithPartSize(16*1024*1024),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}

	// Start with default AWS configuration or use custom config
	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1" // AWS default region
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return newClient(s3.NewFromConfig(cfg, s3Opts...), clientCfg), nil
}

// NewWithClient creates an upload client over a custom S3API implementation.
// This is primarily used for testing with mocked transports.
func NewWithClient(api s3api.S3API, opts ...s3types.Option) *Client {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}
	return newClient(api, clientCfg)
}

func newClient(api s3api.S3API, clientCfg *s3types.ClientConfig) *Client {
	logger := clientCfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filesystem := clientCfg.Filesystem
	if filesystem == nil {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	return &Client{
		engine: transfer.NewEngine(api, transfer.Config{
			PartSize:    clientCfg.PartSize,
			Concurrency: clientCfg.Concurrency,
			Logger:      logger,
		}),
		logger: logger,
		fs:     filesystem,
	}
}

func defaultClientConfig() *s3types.ClientConfig {
	return &s3types.ClientConfig{
		MaxRetries:  3,
		Concurrency: transfer.DefaultConcurrency,
		PartSize:    transfer.DefaultPartSize,
	}
}
