// Package s3types provides shared type definitions for the upload client.
package s3types

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// StorageClass represents the S3 storage class for uploaded objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassReducedRedundancy provides reduced redundancy storage
	StorageClassReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacier provides Glacier archival storage
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive provides Deep Archive storage
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// SSEType represents the server-side encryption type for objects.
type SSEType string

// Predefined server-side encryption types
const (
	// SSES3 uses S3-managed encryption keys
	SSES3 SSEType = "AES256"

	// SSEKMS uses AWS KMS-managed encryption keys
	SSEKMS SSEType = "aws:kms"
)

// SSEConfig contains server-side encryption configuration.
type SSEConfig struct {
	// Type is the encryption type (S3-managed or KMS)
	Type SSEType

	// KMSKeyID is the KMS key ID (required for SSE-KMS)
	KMSKeyID string
}

// ChecksumMode selects how trailing checksums are handled for a streaming upload.
// The mode is chosen once, when the upload begins, and is immutable for the
// lifetime of the session.
type ChecksumMode int

const (
	// ChecksumDisabled engages no checksum machinery.
	ChecksumDisabled ChecksumMode = iota

	// ChecksumEnabled computes a CRC32C trailer for every part and attaches it
	// to the part upload unconditionally.
	ChecksumEnabled

	// ChecksumReviewOnly computes per-part CRC32C checksums and exposes them to
	// the upload review callback, but does not attach them to the parts.
	ChecksumReviewOnly
)

// RequestTemplate is the immutable description of one upload request, built
// once when a session (or single-shot put) is created. Any failure to build a
// template is a construction error and aborts the operation before any network
// activity happens.
type RequestTemplate struct {
	// Bucket is the destination bucket name
	Bucket string

	// Key is the destination object key
	Key string

	// ContentType is the MIME type reported for the object
	ContentType string

	// StorageClass is the storage class for the object, empty for default
	StorageClass StorageClass

	// SSE is the server-side encryption configuration, nil for none
	SSE *SSEConfig

	// Metadata contains the x-amz-meta-* object metadata pairs
	Metadata map[string]string

	// Headers contains custom HTTP headers applied to every request of the
	// upload, on top of what the SDK generates
	Headers map[string]string

	// Checksums selects the trailing checksum policy for the upload
	Checksums ChecksumMode
}

// UploadReview is the last-chance view of a pending upload handed to the
// review callback after all parts are transmitted and before the upload is
// finalized. Returning false from the callback aborts the upload.
type UploadReview struct {
	// Parts describes every transmitted part in part-number order
	Parts []UploadReviewPart
}

// TotalSize returns the summed size of all reviewed parts.
func (r UploadReview) TotalSize() int64 {
	var total int64
	for _, p := range r.Parts {
		total += p.Size
	}
	return total
}

// UploadReviewPart describes a single transmitted part under review.
type UploadReviewPart struct {
	// PartNumber is the 1-based part number
	PartNumber int32

	// Size is the transmitted part size in bytes
	Size int64

	// ChecksumCRC32C is the base64-encoded CRC32C of the part body.
	// Empty when the upload's checksum mode is ChecksumDisabled.
	ChecksumCRC32C string
}

// UploadResult contains the result of a completed upload.
type UploadResult struct {
	// Key is the object key that was uploaded
	Key string

	// ETag is the S3 entity tag of the finalized object
	ETag string

	// SSEType is the server-side encryption type echoed by S3, if any
	SSEType string

	// SSEKMSKeyID is the KMS key ID echoed by S3, if any
	SSEKMSKeyID string

	// Duration is how long the upload took, from session creation to finalize
	Duration time.Duration
}

// Configuration types for functional options

// ClientConfig holds configuration for the upload client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	PartSize         int64
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Filesystem       fs.Filesystem // Filesystem abstraction for file operations
}

// PutOptionConfig holds configuration for a single put operation, streaming or
// single-shot, assembled via functional options.
type PutOptionConfig struct {
	ContentType  string
	Metadata     map[string]string
	Headers      map[string]string
	StorageClass StorageClass
	SSE          *SSEConfig
	Checksums    ChecksumMode
	PartSize     int64
}

// Option is a functional option for configuring the upload client.
type (
	Option func(*ClientConfig)
	// PutOption is a functional option for configuring a put operation.
	PutOption func(*PutOptionConfig)
)
