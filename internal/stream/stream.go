// Package stream copies bytes between readers and writers with a fixed-size
// buffer, checking a context before every chunk.
package stream

import (
	"context"
	"errors"
	"io"
)

// DefaultBufferSize is used when a caller passes a nil or empty buffer.
const DefaultBufferSize = 64 * 1024

// Copy copies src to dst until EOF, ctx cancellation or an error. It returns
// the number of bytes written.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	return copyBuffer(ctx, dst, src, -1, buf)
}

// CopyN copies exactly n bytes from src to dst. Reaching EOF early is
// reported as io.ErrUnexpectedEOF.
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte) (int64, error) {
	written, err := copyBuffer(ctx, dst, src, n, buf)
	if err == nil && written < n {
		err = io.ErrUnexpectedEOF
	}
	return written, err
}

func copyBuffer(ctx context.Context, dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	var written int64
	for limit < 0 || written < limit {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := buf
		if limit >= 0 && int64(len(chunk)) > limit-written {
			chunk = chunk[:limit-written]
		}
		rn, rerr := src.Read(chunk)
		if rn > 0 {
			wn, werr := dst.Write(chunk[:rn])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn != rn {
				return written, io.ErrShortWrite
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}
	return written, nil
}
