package s3client

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cloudnepal/mountpoint-s3/errors"
	"github.com/cloudnepal/mountpoint-s3/internal/metrics"
	"github.com/cloudnepal/mountpoint-s3/internal/single"
	"github.com/cloudnepal/mountpoint-s3/internal/transfer"
	"github.com/cloudnepal/mountpoint-s3/internal/validation"
	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// PutObject begins a streaming upload to bucket/key and returns its session.
// The multipart upload is created in the background; PutObject itself fails
// only on construction errors such as an invalid bucket name, object key, or
// metadata. A background failure surfaces from the session's first Write or
// from Complete.
//
// The returned session must be finalized with Complete or ReviewAndComplete,
// even if nothing was written; until then the object is not visible in the
// bucket.
func (c *Client) PutObject(
	ctx context.Context,
	bucket, key string,
	opts ...s3types.PutOption,
) (*UploadSession, error) {
	tmpl, putCfg, err := c.buildTemplate(bucket, key, opts)
	if err != nil {
		return nil, err
	}

	readiness := single.New[error]()
	headers := single.New[transfer.ResponseHeaders]()
	review := newReviewGate(c.logger, bucket, key)
	logger := c.logger

	cb := transfer.Callbacks{
		OnUploadReview: review.invoke,
		OnPartEvent: func(ev transfer.PartEvent) {
			if ev.Type == transfer.RequestTypeCreateUpload && ev.Err == nil {
				readiness.Resolve(nil)
			}
			if ev.Err != nil {
				logger.Debug("upload sub-request failed",
					"bucket", bucket, "key", key,
					"request", ev.Type.String(), "part", ev.PartNumber, "error", ev.Err)
			}
		},
		OnFailure: func(err error) {
			// Whichever of readiness and failure lands first wins; a write
			// racing the failed create sees the failure instead of hanging.
			readiness.Resolve(err)
			logger.Error("upload failed",
				"bucket", bucket, "key", key, "error", err)
		},
		OnHeaders: func(h transfer.ResponseHeaders) {
			headers.Resolve(h)
		},
	}

	upload := c.engine.Submit(ctx, tmpl, putCfg.PartSize, cb)
	return newUploadSession(upload, tmpl, c.logger, readiness, headers, review), nil
}

// PutObjectSingle uploads data as a single PutObject request, bypassing the
// session machinery. Use it for payloads already in memory that fit
// comfortably in one request. The content type is detected from the payload
// when not set explicitly.
func (c *Client) PutObjectSingle(
	ctx context.Context,
	bucket, key string,
	data []byte,
	opts ...s3types.PutOption,
) (*s3types.UploadResult, error) {
	tmpl, _, err := c.buildTemplate(bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if tmpl.ContentType == "" {
		tmpl.ContentType = mimetype.Detect(data).String()
	}

	start := time.Now()
	headers := single.New[transfer.ResponseHeaders]()
	if err := c.engine.PutSingle(ctx, tmpl, data, func(h transfer.ResponseHeaders) {
		headers.Resolve(h)
	}); err != nil {
		return nil, err
	}

	h, ok := headers.TryGet()
	if !ok || h.ETag == nil {
		return nil, errors.NewObjectError("putObject", bucket, key, errors.ErrInternal).
			WithMessage("upload succeeded but no ETag was returned")
	}

	result := &s3types.UploadResult{
		Key:         key,
		ETag:        aws.ToString(h.ETag),
		SSEType:     aws.ToString(h.SSEType),
		SSEKMSKeyID: aws.ToString(h.SSEKMSKeyID),
		Duration:    time.Since(start),
	}
	metrics.RecordUpload(ctx, "put_object_single", uint64(len(data)), result.Duration)
	return result, nil
}

// PutObjectFromFile streams the file at path through an upload session.
// The file is read through the client's filesystem abstraction, and the
// content type is sniffed from the first chunk when not set explicitly.
func (c *Client) PutObjectFromFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.PutOption,
) (*s3types.UploadResult, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.NewObjectError("putObjectFromFile", bucket, key, err).
			WithMessage("failed to open source file")
	}
	defer f.Close()

	// Sniff the content type from the head of the file unless one was given.
	buf := make([]byte, 32*1024)
	n, readErr := f.Read(buf)
	if readErr != nil && readErr != io.EOF {
		return nil, errors.NewObjectError("putObjectFromFile", bucket, key, readErr).
			WithMessage("failed to read source file")
	}
	head := buf[:n]

	putCfg := &s3types.PutOptionConfig{}
	for _, opt := range opts {
		opt(putCfg)
	}
	if putCfg.ContentType == "" {
		opts = append(opts, WithContentType(mimetype.Detect(head).String()))
	}

	session, err := c.PutObject(ctx, bucket, key, opts...)
	if err != nil {
		return nil, err
	}

	if err := session.Write(ctx, head); err != nil {
		return nil, err
	}
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := session.Write(ctx, buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, errors.NewObjectError("putObjectFromFile", bucket, key, readErr).
				WithMessage("failed to read source file")
		}
	}

	return session.Complete(ctx)
}

// buildTemplate validates inputs and assembles the immutable request template
// for one upload.
func (c *Client) buildTemplate(
	bucket, key string,
	opts []s3types.PutOption,
) (*s3types.RequestTemplate, *s3types.PutOptionConfig, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, nil, err
	}

	putCfg := &s3types.PutOptionConfig{}
	for _, opt := range opts {
		opt(putCfg)
	}

	if err := validation.ValidateMetadata(putCfg.Metadata); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateHeaders(putCfg.Headers); err != nil {
		return nil, nil, err
	}
	if putCfg.ContentType != "" {
		if err := validation.ValidateContentType(putCfg.ContentType); err != nil {
			return nil, nil, err
		}
	}
	if putCfg.SSE != nil && putCfg.SSE.Type == s3types.SSEKMS && putCfg.SSE.KMSKeyID == "" {
		return nil, nil, errors.NewObjectError("putObject", bucket, key, errors.ErrInvalidInput).
			WithMessage("SSE-KMS requires a KMS key ID")
	}

	return &s3types.RequestTemplate{
		Bucket:       bucket,
		Key:          key,
		ContentType:  putCfg.ContentType,
		StorageClass: putCfg.StorageClass,
		SSE:          putCfg.SSE,
		Metadata:     putCfg.Metadata,
		Headers:      putCfg.Headers,
		Checksums:    putCfg.Checksums,
	}, putCfg, nil
}
