package errors

import (
	stderrors "errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  NewObjectError("write", "bucket", "key", base),
			want: "s3.write bucket/key: boom",
		},
		{
			name: "bucket only",
			err:  NewError("validateBucketName", base).WithBucket("bucket"),
			want: "s3.validateBucketName bucket bucket: boom",
		},
		{
			name: "key only",
			err:  NewError("validateObjectKey", base).WithKey("key"),
			want: "s3.validateObjectKey object key: boom",
		},
		{
			name: "bare operation",
			err:  NewError("client initialization", base),
			want: "s3.client initialization: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	err := NewObjectError("complete", "b", "k", ErrRequestCanceled).
		WithMessage("second completion")

	assert.ErrorIs(t, err, ErrRequestCanceled)
	assert.True(t, IsRequestCanceled(err))
	assert.Contains(t, err.Error(), "second completion")
}

func TestSentinelHierarchy(t *testing.T) {
	assert.True(t, IsInvalidInput(ErrInvalidBucketName))
	assert.True(t, IsInvalidInput(ErrInvalidObjectKey))
	assert.False(t, IsInvalidInput(ErrRequestCanceled))
	assert.True(t, IsInternal(NewError("complete", ErrInternal)))
}

type fakeAPIError struct {
	code string
}

func (e *fakeAPIError) Error() string                 { return e.code }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestConvertAWSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no such bucket", err: &fakeAPIError{code: "NoSuchBucket"}, want: ErrBucketNotFound},
		{name: "access denied", err: &fakeAPIError{code: "AccessDenied"}, want: ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertAWSError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("unrecognized passes through", func(t *testing.T) {
		plain := stderrors.New("connection reset")
		require.Equal(t, plain, ConvertAWSError(plain))
	})

	t.Run("original error stays matchable", func(t *testing.T) {
		api := &fakeAPIError{code: "NoSuchBucket"}
		got := ConvertAWSError(api)
		var out smithy.APIError
		assert.ErrorAs(t, got, &out)
	})
}
