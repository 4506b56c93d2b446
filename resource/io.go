package resource

import (
	"context"
	"errors"
	"io"
)

// RateLimitedWriter wraps an io.Writer so that writes draw from the
// controller's IO budget before reaching the underlying writer.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
// ctx bounds how long writes may wait for IO tokens.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		w:   w,
		rc:  rc,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (n int, err error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// Seek delegates to the underlying writer if it is an io.Seeker.
// Seeking consumes no IO budget.
func (w *RateLimitedWriter) Seek(offset int64, whence int) (int64, error) {
	if s, ok := w.w.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, errors.New("resource: underlying writer does not support seeking")
}

// RateLimitedReader wraps an io.Reader so that reads draw from the
// controller's IO budget before reaching the underlying reader.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader creates a new RateLimitedReader.
// ctx bounds how long reads may wait for IO tokens.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		r:   r,
		rc:  rc,
	}
}

func (r *RateLimitedReader) Read(p []byte) (n int, err error) {
	// The read size is unknown up front, so budget for the full buffer.
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
