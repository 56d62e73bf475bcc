// Package errors provides error types and handling for S3 upload operations.
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Error represents an upload operation error with context about the operation
// that failed. It wraps the underlying AWS SDK error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "putObject", "write", "complete")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for upload operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the request could not be constructed from
	// the provided parameters. It is always detected synchronously, before any
	// network activity.
	ErrInvalidInput = errors.New("s3: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid.
	// Matches ErrInvalidInput under errors.Is.
	ErrInvalidBucketName = fmt.Errorf("%w: invalid bucket name", ErrInvalidInput)

	// ErrInvalidObjectKey indicates that the object key is invalid.
	// Matches ErrInvalidInput under errors.Is.
	ErrInvalidObjectKey = fmt.Errorf("%w: invalid object key", ErrInvalidInput)

	// ErrRequestCanceled indicates a caller protocol violation: a write was
	// issued while a previous write was still in flight, or a session was
	// completed twice. The session must be abandoned.
	ErrRequestCanceled = errors.New("s3: request canceled")

	// ErrInternal indicates malformed or missing response data on an otherwise
	// successful request, such as an absent ETag header. It is a defect, not a
	// caller error.
	ErrInternal = errors.New("s3: internal error")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3: access denied")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("s3: bucket not found")
)

// IsRequestCanceled checks if an error indicates a caller protocol violation.
func IsRequestCanceled(err error) bool {
	return errors.Is(err, ErrRequestCanceled)
}

// IsInvalidInput checks if an error indicates a construction-time failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInternal checks if an error indicates malformed response data.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// ConvertAWSError maps AWS service error codes onto the package sentinels so
// callers can match with errors.Is. Unrecognized errors are returned verbatim.
func ConvertAWSError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return err
}
