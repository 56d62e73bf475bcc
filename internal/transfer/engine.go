// Package transfer implements the multipart-upload transport engine behind
// streaming upload sessions.
//
// A submitted upload is driven by its own goroutine: it creates the multipart
// upload, streams buffered parts to S3 with bounded concurrency, invokes the
// upload review hook exactly once after the last part, and either finalizes
// or aborts the upload. Observers learn about sub-request outcomes, terminal
// failure, and finalizing response headers through the submission callbacks.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	s3errors "github.com/cloudnepal/mountpoint-s3/errors"
	"github.com/cloudnepal/mountpoint-s3/internal/s3api"
	"github.com/cloudnepal/mountpoint-s3/s3types"
)

const (
	// DefaultPartSize is the part size used when none is configured.
	DefaultPartSize = 8 * 1024 * 1024

	// DefaultConcurrency bounds concurrent part uploads per upload.
	DefaultConcurrency = 5
)

// Config carries engine-wide settings.
type Config struct {
	// PartSize is the default part size in bytes for streaming uploads.
	PartSize int64

	// Concurrency bounds concurrent UploadPart requests per upload.
	Concurrency int

	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine submits and drives multipart uploads against an S3 API.
type Engine struct {
	client      s3api.S3API
	partSize    int64
	concurrency int
	logger      *slog.Logger
}

// NewEngine creates an engine over the given S3 API.
func NewEngine(client s3api.S3API, cfg Config) *Engine {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		client:      client,
		partSize:    cfg.PartSize,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// PartSize returns the part size, in bytes, that streaming uploads use unless
// overridden per upload.
func (e *Engine) PartSize() int64 {
	return e.partSize
}

// Submit begins an asynchronous multipart upload described by tmpl and
// returns its writable handle. partSize overrides the engine default when
// positive. The returned handle is immediately writable; readiness of the
// multipart upload is reported through cb.OnPartEvent and cb.OnFailure.
func (e *Engine) Submit(ctx context.Context, tmpl *s3types.RequestTemplate, partSize int64, cb Callbacks) *Upload {
	if partSize <= 0 {
		partSize = e.partSize
	}
	u := newUpload(int(partSize), e.concurrency)
	go e.run(ctx, tmpl, u, cb)
	return u
}

// uploadedPart is the record a part worker leaves behind for review and
// finalization.
type uploadedPart struct {
	number   int32
	size     int64
	etag     string
	checksum string
}

func (e *Engine) run(ctx context.Context, tmpl *s3types.RequestTemplate, u *Upload, cb Callbacks) {
	optFns := requestOptions(tmpl)

	createOut, err := e.client.CreateMultipartUpload(ctx, createInput(tmpl), optFns...)
	cb.partEvent(PartEvent{Type: RequestTypeCreateUpload, Err: err})
	if err != nil {
		e.fail(u, cb, s3errors.NewObjectError("createMultipartUpload", tmpl.Bucket, tmpl.Key,
			s3errors.ConvertAWSError(err)))
		return
	}
	uploadID := aws.ToString(createOut.UploadId)

	var (
		mu        sync.Mutex
		completed []uploadedPart
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

receive:
	for {
		select {
		case pt, ok := <-u.parts:
			if !ok {
				break receive
			}
			g.Go(func() error {
				rec, err := e.uploadPart(gctx, tmpl, uploadID, pt, optFns)
				cb.partEvent(PartEvent{Type: RequestTypeUploadPart, PartNumber: pt.number, Err: err})
				if err != nil {
					return err
				}
				mu.Lock()
				completed = append(completed, rec)
				mu.Unlock()
				u.bufPool.Put(pt.body)
				return nil
			})
		case <-gctx.Done():
			break receive
		}
	}

	if err := g.Wait(); err != nil {
		e.abort(context.WithoutCancel(ctx), tmpl, cb, uploadID, optFns)
		e.fail(u, cb, err)
		return
	}
	if err := ctx.Err(); err != nil {
		// Parent context canceled with no part error: the upload is abandoned.
		e.abort(context.WithoutCancel(ctx), tmpl, cb, uploadID, optFns)
		e.fail(u, cb, err)
		return
	}

	e.finalize(ctx, tmpl, u, cb, uploadID, completed, optFns)
}

func (e *Engine) finalize(
	ctx context.Context,
	tmpl *s3types.RequestTemplate,
	u *Upload,
	cb Callbacks,
	uploadID string,
	completed []uploadedPart,
	optFns []func(*s3.Options),
) {
	sort.Slice(completed, func(i, j int) bool { return completed[i].number < completed[j].number })

	accepted := true
	if cb.OnUploadReview != nil {
		accepted = cb.OnUploadReview(buildReview(tmpl, completed))
	}
	if !accepted {
		e.abort(ctx, tmpl, cb, uploadID, optFns)
		e.fail(u, cb, s3errors.NewObjectError("completeMultipartUpload", tmpl.Bucket, tmpl.Key, ErrReviewRejected))
		return
	}

	out, err := e.client.CompleteMultipartUpload(ctx, completeInput(tmpl, uploadID, completed), optFns...)
	cb.partEvent(PartEvent{Type: RequestTypeCompleteUpload, Err: err})
	if err != nil {
		e.abort(ctx, tmpl, cb, uploadID, optFns)
		e.fail(u, cb, s3errors.NewObjectError("completeMultipartUpload", tmpl.Bucket, tmpl.Key,
			s3errors.ConvertAWSError(err)))
		return
	}

	if cb.OnHeaders != nil {
		cb.OnHeaders(responseHeaders(out.ETag, out.ServerSideEncryption, out.SSEKMSKeyId))
	}
	u.terminal.Resolve(nil)
}

func (e *Engine) uploadPart(
	ctx context.Context,
	tmpl *s3types.RequestTemplate,
	uploadID string,
	pt part,
	optFns []func(*s3.Options),
) (uploadedPart, error) {
	rec := uploadedPart{number: pt.number, size: int64(len(pt.body))}

	input := &s3.UploadPartInput{
		Bucket:        aws.String(tmpl.Bucket),
		Key:           aws.String(tmpl.Key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(pt.number),
		Body:          bytes.NewReader(pt.body),
		ContentLength: aws.Int64(rec.size),
	}
	switch tmpl.Checksums {
	case s3types.ChecksumEnabled:
		rec.checksum = ChecksumCRC32C(pt.body)
		input.ChecksumAlgorithm = awstypes.ChecksumAlgorithmCrc32c
		input.ChecksumCRC32C = aws.String(rec.checksum)
	case s3types.ChecksumReviewOnly:
		rec.checksum = ChecksumCRC32C(pt.body)
	}

	out, err := e.client.UploadPart(ctx, input, optFns...)
	if err != nil {
		return rec, s3errors.NewObjectError("uploadPart", tmpl.Bucket, tmpl.Key,
			s3errors.ConvertAWSError(err)).
			WithMessage(fmt.Sprintf("part %d", pt.number))
	}
	rec.etag = aws.ToString(out.ETag)
	return rec, nil
}

// abort rolls back a multipart upload. Abort failures are logged, not
// surfaced; the upload's terminal error is the one that forced the abort.
func (e *Engine) abort(
	ctx context.Context,
	tmpl *s3types.RequestTemplate,
	cb Callbacks,
	uploadID string,
	optFns []func(*s3.Options),
) {
	_, err := e.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(tmpl.Bucket),
		Key:      aws.String(tmpl.Key),
		UploadId: aws.String(uploadID),
	}, optFns...)
	cb.partEvent(PartEvent{Type: RequestTypeAbortUpload, Err: err})
	if err != nil {
		e.logger.Error("failed to abort multipart upload",
			"bucket", tmpl.Bucket, "key", tmpl.Key, "upload_id", uploadID, "error", err)
	}
}

func (e *Engine) fail(u *Upload, cb Callbacks, err error) {
	if u.fail(err) && cb.OnFailure != nil {
		cb.OnFailure(err)
	}
}

// PutSingle uploads the whole payload as one PutObject request. It shares the
// request-template and headers-delivery paths with streaming uploads but has
// no readiness or review phase: there is exactly one write and no multipart
// identifier to wait for.
func (e *Engine) PutSingle(
	ctx context.Context,
	tmpl *s3types.RequestTemplate,
	data []byte,
	onHeaders func(ResponseHeaders),
) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(tmpl.Bucket),
		Key:           aws.String(tmpl.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if tmpl.ContentType != "" {
		input.ContentType = aws.String(tmpl.ContentType)
	}
	if tmpl.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(tmpl.StorageClass)
	}
	if len(tmpl.Metadata) > 0 {
		input.Metadata = tmpl.Metadata
	}
	applySSEPut(input, tmpl.SSE)
	if tmpl.Checksums == s3types.ChecksumEnabled {
		input.ChecksumAlgorithm = awstypes.ChecksumAlgorithmCrc32c
		input.ChecksumCRC32C = aws.String(ChecksumCRC32C(data))
	}

	out, err := e.client.PutObject(ctx, input, requestOptions(tmpl)...)
	if err != nil {
		return s3errors.NewObjectError("putObject", tmpl.Bucket, tmpl.Key, s3errors.ConvertAWSError(err))
	}
	if onHeaders != nil {
		onHeaders(responseHeaders(out.ETag, out.ServerSideEncryption, out.SSEKMSKeyId))
	}
	return nil
}

func createInput(tmpl *s3types.RequestTemplate) *s3.CreateMultipartUploadInput {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(tmpl.Bucket),
		Key:    aws.String(tmpl.Key),
	}
	if tmpl.ContentType != "" {
		input.ContentType = aws.String(tmpl.ContentType)
	}
	if tmpl.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(tmpl.StorageClass)
	}
	if len(tmpl.Metadata) > 0 {
		input.Metadata = tmpl.Metadata
	}
	if tmpl.Checksums == s3types.ChecksumEnabled {
		input.ChecksumAlgorithm = awstypes.ChecksumAlgorithmCrc32c
	}
	if tmpl.SSE != nil {
		switch tmpl.SSE.Type {
		case s3types.SSES3:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
		case s3types.SSEKMS:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
			if tmpl.SSE.KMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(tmpl.SSE.KMSKeyID)
			}
		}
	}
	return input
}

func applySSEPut(input *s3.PutObjectInput, sse *s3types.SSEConfig) {
	if sse == nil {
		return
	}
	switch sse.Type {
	case s3types.SSES3:
		input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
	case s3types.SSEKMS:
		input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
		if sse.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(sse.KMSKeyID)
		}
	}
}

func completeInput(tmpl *s3types.RequestTemplate, uploadID string, completed []uploadedPart) *s3.CompleteMultipartUploadInput {
	parts := make([]awstypes.CompletedPart, 0, len(completed))
	for _, p := range completed {
		cp := awstypes.CompletedPart{
			ETag:       aws.String(p.etag),
			PartNumber: aws.Int32(p.number),
		}
		if tmpl.Checksums == s3types.ChecksumEnabled {
			cp.ChecksumCRC32C = aws.String(p.checksum)
		}
		parts = append(parts, cp)
	}
	return &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(tmpl.Bucket),
		Key:      aws.String(tmpl.Key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	}
}

func buildReview(tmpl *s3types.RequestTemplate, completed []uploadedPart) s3types.UploadReview {
	review := s3types.UploadReview{
		Parts: make([]s3types.UploadReviewPart, 0, len(completed)),
	}
	for _, p := range completed {
		review.Parts = append(review.Parts, s3types.UploadReviewPart{
			PartNumber:     p.number,
			Size:           p.size,
			ChecksumCRC32C: p.checksum,
		})
	}
	return review
}

func responseHeaders(etag *string, sse awstypes.ServerSideEncryption, kmsKeyID *string) ResponseHeaders {
	headers := ResponseHeaders{
		ETag:        etag,
		SSEKMSKeyID: kmsKeyID,
	}
	if sse != "" {
		headers.SSEType = aws.String(string(sse))
	}
	return headers
}
