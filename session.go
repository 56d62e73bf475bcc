package s3client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/cloudnepal/mountpoint-s3/errors"
	"github.com/cloudnepal/mountpoint-s3/internal/metrics"
	"github.com/cloudnepal/mountpoint-s3/internal/single"
	"github.com/cloudnepal/mountpoint-s3/internal/transfer"
	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// Session states. A session starts awaiting readiness of the underlying
// multipart upload, alternates between write-in-flight and idle while the
// caller streams data, and ends completed once finalization begins.
const (
	stateAwaitingReadiness int32 = iota
	stateWriteInFlight
	stateIdle
	stateCompleted
)

// UploadSession is an in-flight streaming upload created by Client.PutObject.
//
// Write, Complete, and ReviewAndComplete must not overlap: a session accepts
// one mutating call at a time, and an overlapping call fails with a
// request-canceled error rather than blocking. BytesWritten may be called
// concurrently at any time.
type UploadSession struct {
	upload *transfer.Upload
	tmpl   *s3types.RequestTemplate
	logger *slog.Logger

	state atomic.Int32
	bytes atomic.Uint64
	start time.Time

	// readiness resolves once the upload can accept data (nil) or has
	// already failed (the failure). Only the first write waits on it.
	readiness *single.Slot[error]

	// headers captures the finalizing response headers. Resolved before the
	// upload's terminal state on success.
	headers *single.Slot[transfer.ResponseHeaders]

	review *reviewGate
}

func newUploadSession(upload *transfer.Upload, tmpl *s3types.RequestTemplate, logger *slog.Logger,
	readiness *single.Slot[error], headers *single.Slot[transfer.ResponseHeaders], review *reviewGate,
) *UploadSession {
	return &UploadSession{
		upload:    upload,
		tmpl:      tmpl,
		logger:    logger,
		start:     time.Now(),
		readiness: readiness,
		headers:   headers,
		review:    review,
	}
}

// Write appends p to the object being uploaded. The first Write blocks until
// the multipart upload is ready to accept data; later writes block only when
// the engine's part queue is full. Write returns only after all of p has been
// accepted into the upload.
//
// A Write overlapping another Write, or arriving after completion has begun,
// fails with a request-canceled error without disturbing the session. A Write
// that fails in transport latches the session: the claim is never released,
// so every later Write or Complete fails with a request-canceled error.
func (s *UploadSession) Write(ctx context.Context, p []byte) error {
	if err := s.acquire(ctx, "write"); err != nil {
		return err
	}

	rem := p
	for {
		out, err := s.upload.Write(ctx, rem, false)
		if err != nil {
			// Latched: the claim is deliberately not released, so the
			// failure poisons every later mutating call.
			return errors.NewObjectError("write", s.tmpl.Bucket, s.tmpl.Key, err)
		}
		s.bytes.Add(uint64(len(rem) - len(out)))
		if len(out) == 0 {
			break
		}
		rem = out
	}

	s.state.Store(stateIdle)
	return nil
}

// Complete finalizes the upload and blocks until it fully succeeds or fails.
// A session can be completed once; a second Complete, or one overlapping a
// Write, fails with a request-canceled error.
func (s *UploadSession) Complete(ctx context.Context) (*s3types.UploadResult, error) {
	return s.ReviewAndComplete(ctx, func(s3types.UploadReview) bool { return true })
}

// ReviewAndComplete finalizes the upload like Complete, but first hands a
// summary of every transmitted part to review. If review returns false the
// upload is aborted and ReviewAndComplete fails; nothing becomes visible in
// the bucket.
//
// review runs on an engine goroutine, not the caller's.
func (s *UploadSession) ReviewAndComplete(
	ctx context.Context,
	review func(s3types.UploadReview) bool,
) (*s3types.UploadResult, error) {
	if err := s.acquire(ctx, "complete"); err != nil {
		return nil, err
	}
	// Completion is one-way: even on failure the session stays completed.
	s.state.Store(stateCompleted)

	s.review.arm(review)

	var rem []byte
	for {
		out, err := s.upload.Write(ctx, rem, true)
		if err != nil {
			return nil, errors.NewObjectError("complete", s.tmpl.Bucket, s.tmpl.Key, err)
		}
		if len(out) == 0 {
			break
		}
		rem = out
	}

	if err := s.upload.AwaitCompletion(ctx); err != nil {
		return nil, errors.NewObjectError("complete", s.tmpl.Bucket, s.tmpl.Key, err)
	}

	result, err := s.buildResult()
	if err != nil {
		return nil, err
	}
	metrics.RecordUpload(ctx, "put_object", s.bytes.Load(), result.Duration)
	return result, nil
}

// BytesWritten returns the number of bytes accepted by Write so far. It is
// safe to call concurrently with any other session method, e.g. from a
// progress reporter.
func (s *UploadSession) BytesWritten() uint64 {
	return s.bytes.Load()
}

// acquire claims the session for one mutating call. The first claim waits for
// upload readiness so a queued-but-doomed upload surfaces its failure here
// rather than deep inside a part write.
func (s *UploadSession) acquire(ctx context.Context, op string) error {
	if s.state.CompareAndSwap(stateAwaitingReadiness, stateWriteInFlight) {
		ready, err := s.readiness.Wait(ctx)
		if err != nil {
			// Context gave up before readiness; the session may still
			// become usable, so put it back.
			s.state.Store(stateAwaitingReadiness)
			return errors.NewObjectError(op, s.tmpl.Bucket, s.tmpl.Key, err)
		}
		if ready != nil {
			// The upload never became usable; keep the claim so later
			// calls fail fast with a request-canceled error.
			return errors.NewObjectError(op, s.tmpl.Bucket, s.tmpl.Key, ready)
		}
		return nil
	}
	if s.state.CompareAndSwap(stateIdle, stateWriteInFlight) {
		return nil
	}
	return errors.NewObjectError(op, s.tmpl.Bucket, s.tmpl.Key, errors.ErrRequestCanceled)
}

func (s *UploadSession) buildResult() (*s3types.UploadResult, error) {
	headers, ok := s.headers.TryGet()
	if !ok || headers.ETag == nil {
		// The engine resolves headers before success; missing ones mean a
		// bug or a non-conformant endpoint.
		return nil, errors.NewObjectError("complete", s.tmpl.Bucket, s.tmpl.Key, errors.ErrInternal).
			WithMessage("upload succeeded but no ETag was returned")
	}
	return &s3types.UploadResult{
		Key:         s.tmpl.Key,
		ETag:        aws.ToString(headers.ETag),
		SSEType:     aws.ToString(headers.SSEType),
		SSEKMSKeyID: aws.ToString(headers.SSEKMSKeyID),
		Duration:    time.Since(s.start),
	}, nil
}

// reviewGate holds the caller's review callback between ReviewAndComplete and
// the engine's review pass. The callback is consumed on invocation. Arming an
// already-armed gate is a caller bug and panics; an invocation with no
// callback armed denies the upload and logs, since finalizing an unreviewed
// upload is never safe.
type reviewGate struct {
	mu     sync.Mutex
	fn     func(s3types.UploadReview) bool
	logger *slog.Logger
	bucket string
	key    string
}

func newReviewGate(logger *slog.Logger, bucket, key string) *reviewGate {
	return &reviewGate{logger: logger, bucket: bucket, key: key}
}

func (g *reviewGate) arm(fn func(s3types.UploadReview) bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fn != nil {
		panic("s3client: upload review callback armed twice")
	}
	g.fn = fn
}

func (g *reviewGate) invoke(review s3types.UploadReview) bool {
	g.mu.Lock()
	fn := g.fn
	g.fn = nil
	g.mu.Unlock()

	if fn == nil {
		g.logger.Error("upload review requested with no reviewer armed, denying",
			"bucket", g.bucket, "key", g.key)
		return false
	}
	return fn(review)
}
