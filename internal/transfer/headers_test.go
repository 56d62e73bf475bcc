package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnepal/mountpoint-s3/s3types"
)

func TestHeaderMiddleware_SetsHeadersOnRequest(t *testing.T) {
	mw := headerMiddleware(map[string]string{
		"X-Amz-Expected-Bucket-Owner": "123456789012",
		"Cache-Control":               "no-store",
	})

	var forwarded *smithyhttp.Request
	next := middleware.BuildHandlerFunc(func(
		ctx context.Context, in middleware.BuildInput,
	) (middleware.BuildOutput, middleware.Metadata, error) {
		forwarded = in.Request.(*smithyhttp.Request)
		return middleware.BuildOutput{}, middleware.Metadata{}, nil
	})

	req := smithyhttp.NewStackRequest().(*smithyhttp.Request)
	_, _, err := mw.HandleBuild(context.Background(), middleware.BuildInput{Request: req}, next)
	require.NoError(t, err)

	require.NotNil(t, forwarded)
	assert.Equal(t, "123456789012", forwarded.Header.Get("X-Amz-Expected-Bucket-Owner"))
	assert.Equal(t, "no-store", forwarded.Header.Get("Cache-Control"))
}

func TestRequestOptions_EmptyTemplateHasNone(t *testing.T) {
	tmpl := &s3types.RequestTemplate{Bucket: "bucket", Key: "key"}
	assert.Nil(t, requestOptions(tmpl))
}

func TestRequestOptions_RegistersBuildMiddleware(t *testing.T) {
	tmpl := &s3types.RequestTemplate{
		Bucket:  "bucket",
		Key:     "key",
		Headers: map[string]string{"X-Custom-Tag": "ingest"},
	}

	optFns := requestOptions(tmpl)
	require.Len(t, optFns, 1)

	var opts s3.Options
	optFns[0](&opts)
	require.Len(t, opts.APIOptions, 1)

	stack := middleware.NewStack("test", smithyhttp.NewStackRequest)
	require.NoError(t, opts.APIOptions[0](stack))
	_, ok := stack.Build.Get("UploadCustomHeaders")
	assert.True(t, ok)
}

// optFnCountingClient records how many per-request options each S3 operation
// received.
type optFnCountingClient struct {
	mu     sync.Mutex
	counts map[string]int
}

func newOptFnCountingClient() *optFnCountingClient {
	return &optFnCountingClient{counts: make(map[string]int)}
}

func (c *optFnCountingClient) record(op string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[op] = n
}

func (c *optFnCountingClient) count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op]
}

func (c *optFnCountingClient) PutObject(
	ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	c.record("PutObject", len(optFns))
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (c *optFnCountingClient) CreateMultipartUpload(
	ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	c.record("CreateMultipartUpload", len(optFns))
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (c *optFnCountingClient) UploadPart(
	ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	c.record("UploadPart", len(optFns))
	return &s3.UploadPartOutput{ETag: aws.String(`"part-etag"`)}, nil
}

func (c *optFnCountingClient) CompleteMultipartUpload(
	ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	c.record("CompleteMultipartUpload", len(optFns))
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"etag"`)}, nil
}

func (c *optFnCountingClient) AbortMultipartUpload(
	ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	c.record("AbortMultipartUpload", len(optFns))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestEngine_CustomHeadersReachEveryRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newOptFnCountingClient()
	engine := NewEngine(client, Config{PartSize: 64, Concurrency: 2})
	tmpl := &s3types.RequestTemplate{
		Bucket:  "bucket",
		Key:     "key",
		Headers: map[string]string{"X-Custom-Tag": "ingest"},
	}

	u := engine.Submit(ctx, tmpl, 0, Callbacks{})
	rem, err := u.Write(ctx, []byte("streamed payload body"), true)
	require.NoError(t, err)
	require.Empty(t, rem)
	require.NoError(t, u.AwaitCompletion(ctx))

	assert.Equal(t, 1, client.count("CreateMultipartUpload"))
	assert.Equal(t, 1, client.count("UploadPart"))
	assert.Equal(t, 1, client.count("CompleteMultipartUpload"))
}

func TestEngine_CustomHeadersReachAbort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newOptFnCountingClient()
	engine := NewEngine(client, Config{PartSize: 64, Concurrency: 2})
	tmpl := &s3types.RequestTemplate{
		Bucket:  "bucket",
		Key:     "key",
		Headers: map[string]string{"X-Custom-Tag": "ingest"},
	}

	cb := Callbacks{OnUploadReview: func(s3types.UploadReview) bool { return false }}
	u := engine.Submit(ctx, tmpl, 0, cb)
	_, err := u.Write(ctx, []byte("rejected payload"), true)
	require.NoError(t, err)
	require.Error(t, u.AwaitCompletion(ctx))

	assert.Equal(t, 1, client.count("AbortMultipartUpload"))
}

func TestEngine_CustomHeadersReachPutObject(t *testing.T) {
	ctx := context.Background()

	client := newOptFnCountingClient()
	engine := NewEngine(client, Config{})
	tmpl := &s3types.RequestTemplate{
		Bucket:  "bucket",
		Key:     "key",
		Headers: map[string]string{"X-Custom-Tag": "ingest"},
	}

	require.NoError(t, engine.PutSingle(ctx, tmpl, []byte("payload"), nil))
	assert.Equal(t, 1, client.count("PutObject"))
}
