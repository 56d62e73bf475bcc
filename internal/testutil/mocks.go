// Package testutil provides test utilities and mocks for upload operations.
// This package is internal and should only be used for testing within this
// module.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloudnepal/mountpoint-s3/internal/s3api"
)

// MockS3Client is a mock implementation of the S3API interface for testing.
// It allows customization of each S3 operation through function fields. An
// operation with a nil function field succeeds with a plausible default
// output, so tests only configure the calls they care about.
type MockS3Client struct {
	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"mock-etag"`)}, nil
}

// CreateMultipartUpload mocks the S3 CreateMultipartUpload operation.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("mock-upload-id")}, nil
}

// UploadPart mocks the S3 UploadPart operation.
func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	etag := fmt.Sprintf(`"mock-part-%d"`, aws.ToInt32(params.PartNumber))
	return &s3.UploadPartOutput{ETag: aws.String(etag)}, nil
}

// CompleteMultipartUpload mocks the S3 CompleteMultipartUpload operation.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"mock-final-etag"`)}, nil
}

// AbortMultipartUpload mocks the S3 AbortMultipartUpload operation.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

// Ensure MockS3Client implements s3api.S3API interface
var _ s3api.S3API = (*MockS3Client)(nil)

// RecordingS3Client collects every request it receives into an in-memory
// object store, delegating behavior overrides to the embedded MockS3Client.
// It reassembles multipart uploads on completion so tests can assert on the
// final object body.
type RecordingS3Client struct {
	MockS3Client

	mu      sync.Mutex
	nextID  int
	parts   map[string]map[int32][]byte // uploadID -> partNumber -> body
	objects map[string][]byte           // "bucket/key" -> body
	aborted []string
}

// NewRecordingS3Client creates an empty recording client.
func NewRecordingS3Client() *RecordingS3Client {
	return &RecordingS3Client{
		parts:   make(map[string]map[int32][]byte),
		objects: make(map[string][]byte),
	}
}

// PutObject stores the object body directly.
func (r *RecordingS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	out, err := r.MockS3Client.PutObject(ctx, params, optFns...)
	if err != nil {
		return out, err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.objects[objectKey(params.Bucket, params.Key)] = body
	r.mu.Unlock()
	return out, nil
}

// CreateMultipartUpload registers a new upload and returns a fresh ID.
func (r *RecordingS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if r.CreateMultipartUploadFunc != nil {
		return r.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	r.mu.Lock()
	r.nextID++
	id := fmt.Sprintf("upload-%d", r.nextID)
	r.parts[id] = make(map[int32][]byte)
	r.mu.Unlock()
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

// UploadPart stores the part body under its upload ID and part number.
func (r *RecordingS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if r.UploadPartFunc != nil {
		return r.UploadPartFunc(ctx, params, optFns...)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	num := aws.ToInt32(params.PartNumber)
	r.mu.Lock()
	if p, ok := r.parts[aws.ToString(params.UploadId)]; ok {
		p[num] = body
	}
	r.mu.Unlock()
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf(`"part-%d"`, num))}, nil
}

// CompleteMultipartUpload concatenates the stored parts in the order listed
// by the request and records the assembled object.
func (r *RecordingS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if r.CompleteMultipartUploadFunc != nil {
		return r.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.parts[aws.ToString(params.UploadId)]
	var body []byte
	if params.MultipartUpload != nil {
		for _, cp := range params.MultipartUpload.Parts {
			body = append(body, stored[aws.ToInt32(cp.PartNumber)]...)
		}
	}
	r.objects[objectKey(params.Bucket, params.Key)] = body
	delete(r.parts, aws.ToString(params.UploadId))
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"assembled-etag"`)}, nil
}

// AbortMultipartUpload discards the upload's stored parts.
func (r *RecordingS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if r.AbortMultipartUploadFunc != nil {
		return r.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	id := aws.ToString(params.UploadId)
	r.mu.Lock()
	delete(r.parts, id)
	r.aborted = append(r.aborted, id)
	r.mu.Unlock()
	return &s3.AbortMultipartUploadOutput{}, nil
}

// Object returns the stored body for bucket/key, if any completed upload or
// single put wrote it.
func (r *RecordingS3Client) Object(bucket, key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, ok := r.objects[bucket+"/"+key]
	return body, ok
}

// AbortedUploads returns the IDs of uploads that were aborted.
func (r *RecordingS3Client) AbortedUploads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.aborted...)
}

// PendingUploads returns the number of multipart uploads that were created
// but neither completed nor aborted.
func (r *RecordingS3Client) PendingUploads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parts)
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

var _ s3api.S3API = (*RecordingS3Client)(nil)
