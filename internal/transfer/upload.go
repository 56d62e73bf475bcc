package transfer

import (
	"context"

	"github.com/cloudnepal/mountpoint-s3/internal/pool"
	"github.com/cloudnepal/mountpoint-s3/internal/single"
)

// part is one buffered part handed from the writer to the driver.
type part struct {
	number int32
	body   []byte
	final  bool
}

// Upload is the writable handle for one in-flight streaming upload.
//
// Write and AwaitCompletion must be called from a single goroutine at a time;
// the engine's driver and workers run concurrently with them and communicate
// only through the parts channel and the terminal slot.
type Upload struct {
	parts    chan part
	terminal *single.Slot[error]
	bufPool  *pool.BufferPool
	partSize int

	// writer-side state, single-writer by contract
	buf      []byte
	nextPart int32
	closed   bool
}

func newUpload(partSize, queueDepth int) *Upload {
	return &Upload{
		parts:    make(chan part, queueDepth),
		terminal: single.New[error](),
		bufPool:  pool.NewBufferPool(partSize),
		partSize: partSize,
		nextPart: 1,
	}
}

// Write buffers as much of p as fits in the current part and returns the
// unconsumed remainder. Crossing a part boundary hands the full part to the
// driver, which may block until the driver has queue room. final signals
// end-of-stream: the current buffer is flushed as the last part and the part
// stream is closed, triggering review and finalization.
//
// Writing to an upload that already failed returns its terminal error.
func (u *Upload) Write(ctx context.Context, p []byte, final bool) ([]byte, error) {
	if u.closed {
		return nil, ErrUploadClosed
	}
	if err, done := u.terminal.TryGet(); done {
		if err == nil {
			err = ErrUploadClosed
		}
		return nil, err
	}

	if u.buf == nil {
		u.buf = u.bufPool.Get()
	}

	space := u.partSize - len(u.buf)
	n := len(p)
	if n > space {
		n = space
	}
	u.buf = append(u.buf, p[:n]...)
	remaining := p[n:]

	if len(u.buf) == u.partSize {
		if err := u.send(ctx, part{number: u.nextPart, body: u.buf}); err != nil {
			return nil, err
		}
		u.nextPart++
		u.buf = nil
		if final && len(remaining) == 0 {
			return u.finish(ctx)
		}
		return remaining, nil
	}

	if final {
		return u.finish(ctx)
	}
	return remaining, nil
}

// finish flushes the trailing buffer and closes the part stream. The flush
// always produces at least one part so the finalizing request is valid even
// for empty objects.
func (u *Upload) finish(ctx context.Context) ([]byte, error) {
	if len(u.buf) > 0 || u.nextPart == 1 {
		if u.buf == nil {
			u.buf = u.bufPool.Get()
		}
		if err := u.send(ctx, part{number: u.nextPart, body: u.buf, final: true}); err != nil {
			return nil, err
		}
		u.nextPart++
		u.buf = nil
	}
	u.closed = true
	close(u.parts)
	return nil, nil
}

func (u *Upload) send(ctx context.Context, pt part) error {
	select {
	case u.parts <- pt:
		return nil
	case <-u.terminal.Done():
		err, _ := u.terminal.TryGet()
		if err == nil {
			err = ErrUploadClosed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitCompletion blocks until the whole upload has finished and returns its
// terminal error, nil on success. Response headers are guaranteed to have been
// delivered before a nil result.
func (u *Upload) AwaitCompletion(ctx context.Context) error {
	err, ctxErr := u.terminal.Wait(ctx)
	if ctxErr != nil {
		return ctxErr
	}
	return err
}

// fail resolves the upload's terminal state with err. It reports whether this
// call won the resolution, so failure callbacks fire at most once.
func (u *Upload) fail(err error) bool {
	return u.terminal.Resolve(err)
}
