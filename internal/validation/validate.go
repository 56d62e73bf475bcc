// Package validation provides centralized input validation logic.
//
// All request material is validated before an upload is submitted, so that
// construction failures surface synchronously and never leave partial state
// behind.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cloudnepal/mountpoint-s3/errors"
)

// ValidateBucketName validates that a bucket name is DNS-compliant according to AWS S3 rules.
// Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot be empty")
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
				WithBucket(bucket).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot start or end with a hyphen or dot")
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot contain two adjacent periods or hyphens")
	}

	return nil
}

// ValidateObjectKey validates that an object key is valid according to AWS S3 rules.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot be empty")
	}

	// S3 supports keys up to 1024 bytes
	if len(key) > 1024 {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot exceed 1024 bytes")
	}

	// S3 keys can contain any UTF-8 character, but control characters make for
	// unusable request paths
	for _, char := range key {
		if unicode.IsControl(char) {
			return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
				WithKey(key).
				WithMessage("object key cannot contain control characters")
		}
	}

	return nil
}

// ValidateMetadata validates object metadata keys and values according to S3
// header rules. Metadata travels as x-amz-meta-* headers, so values are
// restricted to printable ASCII.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if err := validateMetadataValue(key, value); err != nil {
			return err
		}
	}
	return nil
}

// reservedHeaders are request headers the SDK owns; caller-supplied values
// for them would corrupt signing or framing.
var reservedHeaders = map[string]struct{}{
	"authorization":  {},
	"host":           {},
	"content-length": {},
}

// ValidateHeaders validates custom request headers. Header names must be
// valid HTTP field names and must not collide with headers the SDK manages;
// values are restricted to printable ASCII.
func ValidateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if name == "" {
			return errors.NewError("validateHeaders", errors.ErrInvalidInput).
				WithMessage("header name cannot be empty")
		}
		if _, reserved := reservedHeaders[strings.ToLower(name)]; reserved {
			return errors.NewError("validateHeaders", errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("header %q is managed by the client and cannot be overridden", name))
		}
		for _, char := range name {
			if !isValidHeaderNameChar(char) {
				return errors.NewError("validateHeaders", errors.ErrInvalidInput).
					WithMessage(fmt.Sprintf("header name %q contains invalid characters", name))
			}
		}
		for _, char := range value {
			if char < 32 || char > 126 {
				return errors.NewError("validateHeaders", errors.ErrInvalidInput).
					WithMessage(fmt.Sprintf("header value for %q can only contain printable ASCII characters", name))
			}
		}
	}
	return nil
}

// ValidateContentType validates that a content type looks like a MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}

	base := strings.SplitN(contentType, ";", 2)[0]
	slash := strings.Index(base, "/")
	if slash <= 0 || slash == len(base)-1 {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	for _, char := range base {
		if char <= ' ' || char > '~' {
			return errors.NewError("validateContentType", errors.ErrInvalidInput).
				WithMessage("content type must be a valid MIME type")
		}
	}

	return nil
}

// isValidHeaderNameChar reports whether char is a tchar per RFC 7230 §3.2.6.
func isValidHeaderNameChar(char rune) bool {
	switch {
	case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-.^_`|~", char)
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

func validateMetadataKey(key string) error {
	if key == "" {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage("metadata key cannot be empty")
	}

	if len(key) > 128 {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage("metadata key cannot exceed 128 characters")
	}

	// Keys are embedded in the x-amz-meta- header name; reject reserved prefixes
	lower := strings.ToLower(key)
	for _, prefix := range []string{"aws:", "x-amz-"} {
		if strings.HasPrefix(lower, prefix) {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("metadata key cannot start with reserved prefix: %s", prefix))
		}
	}

	for _, char := range key {
		if char <= 32 || char > 126 {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata key can only contain printable ASCII characters")
		}
	}

	return nil
}

func validateMetadataValue(key, value string) error {
	if len(value) > 2048 {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("metadata value for %q cannot exceed 2048 characters", key))
	}

	for _, char := range value {
		if char < 32 || char > 126 {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("metadata value for %q can only contain printable ASCII characters", key))
		}
	}

	return nil
}
