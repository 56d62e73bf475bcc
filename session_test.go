package s3client_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3client "github.com/cloudnepal/mountpoint-s3"
	s3errors "github.com/cloudnepal/mountpoint-s3/errors"
	"github.com/cloudnepal/mountpoint-s3/internal/testutil"
	"github.com/cloudnepal/mountpoint-s3/internal/transfer"
	"github.com/cloudnepal/mountpoint-s3/s3types"
)

const sessionPartSize = 5 * 1024 * 1024

func newSessionClient(api *testutil.RecordingS3Client) *s3client.Client {
	return s3client.NewWithClient(api,
		s3client.WithPartSize(sessionPartSize),
		s3client.WithConcurrency(3),
	)
}

func TestUploadSession_StreamAndComplete(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	data := testutil.GeneratePatternData(sessionPartSize + 4096)
	half := len(data) / 2
	require.NoError(t, session.Write(ctx, data[:half]))
	require.NoError(t, session.Write(ctx, data[half:]))

	assert.Equal(t, uint64(len(data)), session.BytesWritten())

	result, err := session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key", result.Key)
	assert.NotEmpty(t, result.ETag)
	assert.Greater(t, result.Duration, time.Duration(0))

	body, ok := api.Object("bucket", "key")
	require.True(t, ok)
	assert.Equal(t, data, body)
}

func TestUploadSession_EmptyObject(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "empty")
	require.NoError(t, err)

	result, err := session.Complete(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ETag)
	assert.Zero(t, session.BytesWritten())

	body, ok := api.Object("bucket", "empty")
	require.True(t, ok)
	assert.Empty(t, body)
}

func TestUploadSession_FirstWriteWaitsForReadiness(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()

	// Hold CreateMultipartUpload until released so the first write must wait.
	release := make(chan struct{})
	var created atomic.Bool
	api.CreateMultipartUploadFunc = func(
		context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error) {
		<-release
		created.Store(true)
		return &s3.CreateMultipartUploadOutput{UploadId: awsString("upload-1")}, nil
	}
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err, "session creation must not wait for the multipart upload")

	wrote := make(chan error, 1)
	go func() {
		wrote <- session.Write(ctx, []byte("data"))
	}()

	select {
	case err := <-wrote:
		t.Fatalf("write returned before the upload was ready: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-wrote)
	assert.True(t, created.Load())

	_, err = session.Complete(ctx)
	require.NoError(t, err)
}

func TestUploadSession_CreateFailureSurfacesOnFirstWrite(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	api.CreateMultipartUploadFunc = func(
		context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error) {
		return nil, errors.New("no such bucket")
	}
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "missing-bucket", "key")
	require.NoError(t, err, "the failure is asynchronous and must not surface here")

	err = session.Write(ctx, []byte("data"))
	require.Error(t, err)

	var opErr *s3errors.Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "missing-bucket", opErr.Bucket)

	// The upload never became usable, so the session stays latched.
	err = session.Write(ctx, []byte("retry"))
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err), "a doomed session must reject later writes, got %v", err)
}

func TestUploadSession_FailedWriteLatchesSession(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	api.UploadPartFunc = func(
		context.Context, *s3.UploadPartInput, ...func(*s3.Options),
	) (*s3.UploadPartOutput, error) {
		return nil, errors.New("connection reset")
	}
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	// Enough data to keep the writer blocked inside the engine until the
	// part failure surfaces through it.
	err = session.Write(ctx, testutil.GeneratePatternData(sessionPartSize*8))
	require.Error(t, err)

	err = session.Write(ctx, []byte("more"))
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err), "a session with a failed write must reject later writes, got %v", err)

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err), "a session with a failed write must reject completion, got %v", err)
}

func TestUploadSession_OverlappingWriteIsCanceled(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()

	// Stall part uploads so a write stays in flight long enough to overlap.
	release := make(chan struct{})
	api.UploadPartFunc = func(
		context.Context, *s3.UploadPartInput, ...func(*s3.Options),
	) (*s3.UploadPartOutput, error) {
		<-release
		return &s3.UploadPartOutput{ETag: awsString(`"ok"`)}, nil
	}
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	// Fill well past the workers and part queue so the write stays blocked
	// inside the engine.
	blocked := make(chan error, 1)
	go func() {
		blocked <- session.Write(ctx, testutil.GeneratePatternData(sessionPartSize*8))
	}()

	// Wait until the concurrent write is genuinely in flight.
	require.Eventually(t, func() bool {
		return session.BytesWritten() > 0
	}, 5*time.Second, time.Millisecond)

	err = session.Write(ctx, []byte("overlap"))
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err), "overlapping write must fail with request canceled, got %v", err)

	close(release)
	require.NoError(t, <-blocked)

	_, err = session.Complete(ctx)
	require.NoError(t, err)
}

func TestUploadSession_DoubleCompleteIsCanceled(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)
	require.NoError(t, session.Write(ctx, []byte("payload")))

	_, err = session.Complete(ctx)
	require.NoError(t, err)

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err))
}

func TestUploadSession_WriteAfterCompleteIsCanceled(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	_, err = session.Complete(ctx)
	require.NoError(t, err)

	err = session.Write(ctx, []byte("late"))
	require.Error(t, err)
	assert.True(t, s3errors.IsRequestCanceled(err))
}

func TestUploadSession_ReviewAndComplete(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	data := testutil.GeneratePatternData(sessionPartSize + 100)

	session, err := client.PutObject(ctx, "bucket", "key",
		s3client.WithChecksums(s3types.ChecksumReviewOnly))
	require.NoError(t, err)
	require.NoError(t, session.Write(ctx, data))

	var mu sync.Mutex
	var reviews []s3types.UploadReview
	result, err := session.ReviewAndComplete(ctx, func(r s3types.UploadReview) bool {
		mu.Lock()
		reviews = append(reviews, r)
		mu.Unlock()
		return true
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ETag)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reviews, 1, "the review callback fires exactly once")
	assert.Equal(t, int64(len(data)), reviews[0].TotalSize())
	require.Len(t, reviews[0].Parts, 2)
	assert.NotEmpty(t, reviews[0].Parts[0].ChecksumCRC32C)
}

func TestUploadSession_ReviewVetoAbortsUpload(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)
	require.NoError(t, session.Write(ctx, []byte("do not keep this")))

	_, err = session.ReviewAndComplete(ctx, func(s3types.UploadReview) bool {
		return false
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrReviewRejected)

	_, ok := api.Object("bucket", "key")
	assert.False(t, ok, "a vetoed upload must not become visible")
	assert.Len(t, api.AbortedUploads(), 1)
}

func TestUploadSession_BytesWrittenTracksRemainderLoop(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	// One write spanning several part boundaries exercises the resubmission
	// loop; every byte must be counted exactly once.
	data := testutil.GeneratePatternData(sessionPartSize*3 + 123)
	require.NoError(t, session.Write(ctx, data))
	assert.Equal(t, uint64(len(data)), session.BytesWritten())

	_, err = session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), session.BytesWritten())
}

func TestUploadSession_BytesWrittenConcurrentPolling(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewRecordingS3Client()
	client := newSessionClient(api)

	session, err := client.PutObject(ctx, "bucket", "key")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 8; i++ {
			assert.NoError(t, session.Write(ctx, testutil.GeneratePatternData(sessionPartSize/2)))
		}
	}()

	// Progress polling must be safe during writes and never regress.
	var last uint64
	for {
		select {
		case <-done:
			assert.Equal(t, uint64(8*sessionPartSize/2), session.BytesWritten())
			_, err = session.Complete(ctx)
			require.NoError(t, err)
			return
		default:
			n := session.BytesWritten()
			assert.GreaterOrEqual(t, n, last)
			last = n
			time.Sleep(time.Millisecond)
		}
	}
}

func awsString(s string) *string { return &s }
