// Package s3client provides functional options for configuring client and
// per-upload behavior. These options follow the functional options pattern
// for clean, composable configuration.
package s3client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// WithRegion sets the AWS region for upload operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint, e.g. for LocalStack or an
// S3-compatible store.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed requests.
// Default is 3 retries.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the maximum number of concurrently in-flight part
// uploads per session. Default is 5.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the default part size for streaming uploads.
// Default is 8MB. Must be at least 5MB for S3 multipart uploads.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of
// virtual-hosted style. Required for most S3-compatible endpoints.
func WithForcePathStyle(force bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = force
	}
}

// WithAWSConfig supplies a pre-built AWS configuration, bypassing the default
// credential chain.
func WithAWSConfig(cfg aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = &cfg
	}
}

// WithHTTPClient supplies a custom HTTP client for S3 requests. Takes
// precedence over WithTimeout.
func WithHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger for client diagnostics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem abstraction used by PutObjectFromFile.
// Defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// Per-upload options.

// WithContentType sets the Content-Type reported for the uploaded object.
// When unset, PutObjectSingle and PutObjectFromFile detect it from content.
func WithContentType(contentType string) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata attaches object metadata (x-amz-meta-*) to the upload.
func WithMetadata(metadata map[string]string) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		c.Metadata = metadata
	}
}

// WithHeader attaches a custom HTTP header to every request of the upload.
// Repeated calls accumulate; repeating a name overwrites the earlier value.
// Headers the SDK manages itself (Authorization, Host, Content-Length) are
// rejected at construction time.
func WithHeader(name, value string) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[name] = value
	}
}

// WithStorageClass sets the storage class for the uploaded object.
func WithStorageClass(class s3types.StorageClass) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		c.StorageClass = class
	}
}

// WithSSE configures server-side encryption for the uploaded object.
func WithSSE(sse s3types.SSEConfig) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		c.SSE = &sse
	}
}

// WithChecksums selects the trailing-checksum policy for the upload.
// Default is s3types.ChecksumDisabled.
func WithChecksums(mode s3types.ChecksumMode) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		c.Checksums = mode
	}
}

// WithUploadPartSize overrides the client's part size for this upload only.
func WithUploadPartSize(partSize int64) s3types.PutOption {
	return func(c *s3types.PutOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}
