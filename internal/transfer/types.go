package transfer

import (
	"errors"

	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// RequestType identifies the kind of sub-request an upload event refers to.
type RequestType int

const (
	// RequestTypeCreateUpload is the CreateMultipartUpload sub-request.
	RequestTypeCreateUpload RequestType = iota

	// RequestTypeUploadPart is an UploadPart sub-request.
	RequestTypeUploadPart

	// RequestTypeCompleteUpload is the CompleteMultipartUpload sub-request.
	RequestTypeCompleteUpload

	// RequestTypeAbortUpload is the AbortMultipartUpload sub-request.
	RequestTypeAbortUpload
)

// String returns the sub-request name for logging.
func (t RequestType) String() string {
	switch t {
	case RequestTypeCreateUpload:
		return "CreateMultipartUpload"
	case RequestTypeUploadPart:
		return "UploadPart"
	case RequestTypeCompleteUpload:
		return "CompleteMultipartUpload"
	case RequestTypeAbortUpload:
		return "AbortMultipartUpload"
	default:
		return "Unknown"
	}
}

// PartEvent describes the completion of one sub-request of an in-flight
// upload. Err is nil when the sub-request succeeded.
type PartEvent struct {
	Type       RequestType
	PartNumber int32
	Err        error
}

// ResponseHeaders carries the headers of the finalizing response
// (CompleteMultipartUpload or PutObject). Fields are nil when the
// corresponding header was absent.
type ResponseHeaders struct {
	ETag        *string
	SSEType     *string
	SSEKMSKeyID *string
}

// Callbacks are the observer hooks an upload submission registers with the
// engine. All callbacks are invoked from engine worker goroutines,
// concurrently with the caller's goroutine; nil callbacks are skipped.
type Callbacks struct {
	// OnUploadReview is invoked exactly once, after all parts are transmitted
	// and before the finalizing request. Returning false aborts the upload.
	OnUploadReview func(s3types.UploadReview) bool

	// OnPartEvent fires on completion of each sub-request with its outcome.
	OnPartEvent func(PartEvent)

	// OnFailure fires at most once, when the whole upload terminates in failure.
	OnFailure func(error)

	// OnHeaders fires when the headers of the finalizing response are
	// available, before the upload resolves successfully.
	OnHeaders func(ResponseHeaders)
}

func (cb Callbacks) partEvent(ev PartEvent) {
	if cb.OnPartEvent != nil {
		cb.OnPartEvent(ev)
	}
}

// Sentinel errors surfaced through an upload's terminal state.
var (
	// ErrReviewRejected indicates the upload review callback denied
	// finalization; the multipart upload was aborted.
	ErrReviewRejected = errors.New("transfer: upload rejected at review")

	// ErrUploadClosed indicates a write against an upload that already
	// received its final write or has terminated.
	ErrUploadClosed = errors.New("transfer: upload closed")
)
