package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 32 * 1024

// Opener opens a remote write target declared with its final size and mode.
// Closing the returned stream flushes it and reports any remote error.
type Opener interface {
	OpenWriteStream(ctx context.Context, remotePath string, size uint64, mode os.FileMode) (io.WriteCloser, error)
}

// Aborter is implemented by streams that can be torn down without
// completing the remote file.
type Aborter interface {
	Abort() error
}

// Engine copies a Plan to a remote stream.
type Engine struct {
	chunkSize int
	logger    *log.Logger
	now       func() time.Time
}

// NewEngine returns an Engine reading chunkSize bytes per write. A
// non-positive chunkSize selects DefaultChunkSize.
func NewEngine(chunkSize int, logger *log.Logger) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{chunkSize: chunkSize, logger: logger, now: time.Now}
}

// Transfer streams plan.File to plan.RemotePath. The observer gets one sample
// per chunk; the final sample, with BytesSent == TotalBytes, is reported once
// the local size has been verified. Transfer does not poll ctx once the stream
// is open; it only hands it to the opener.
func (e *Engine) Transfer(ctx context.Context, opener Opener, plan Plan, observer Observer) error {
	if observer == nil {
		observer = discard
	}
	mode := plan.Mode
	if mode == 0 {
		mode = DefaultMode
	}

	start := e.now()
	stream, err := opener.OpenWriteStream(ctx, plan.RemotePath, plan.Size, mode)
	if err != nil {
		return &Error{Kind: ErrRemoteOpenFailed, Err: err}
	}
	e.logger.Debug("remote stream open", "path", plan.RemotePath, "size", plan.Size, "mode", mode)

	sent, err := e.copy(stream, plan, observer, start)
	if err != nil {
		if cerr := abort(stream); cerr != nil {
			e.logger.Debug("closing remote stream after failure", "err", cerr)
		}
		return err
	}

	if err := stream.Close(); err != nil {
		return &Error{Kind: ErrRemoteCloseFailed, Offset: sent, Err: err}
	}
	observer.Report(Sample{BytesSent: sent, TotalBytes: plan.Size, Elapsed: e.now().Sub(start)})

	e.logger.Debug("transfer complete", "bytes", sent, "elapsed", e.now().Sub(start))
	return nil
}

func (e *Engine) copy(w io.Writer, plan Plan, observer Observer, start time.Time) (uint64, error) {
	buf := make([]byte, e.chunkSize)
	var sent uint64

	for sent < plan.Size {
		want := uint64(len(buf))
		if remaining := plan.Size - sent; remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(plan.File, buf[:want])
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return sent, &Error{Kind: ErrSizeMismatch, Offset: sent, Expected: plan.Size, Actual: sent + uint64(n)}
		case err != nil:
			return sent, &Error{Kind: ErrLocalReadFailed, Offset: sent, Err: err}
		}

		written, err := writeFull(w, buf[:n])
		if err != nil {
			return sent, &Error{Kind: ErrRemoteWriteFailed, Offset: sent + uint64(written), Err: err}
		}
		sent += uint64(n)

		if sent < plan.Size {
			observer.Report(Sample{BytesSent: sent, TotalBytes: plan.Size, Elapsed: e.now().Sub(start)})
		}
	}

	// The file must end exactly at the size captured when it was opened.
	var probe [1]byte
	n, err := io.ReadFull(plan.File, probe[:])
	if n > 0 {
		return sent, &Error{Kind: ErrSizeMismatch, Offset: sent, Expected: plan.Size, Actual: sent + uint64(n)}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return sent, &Error{Kind: ErrLocalReadFailed, Offset: sent, Err: err}
	}
	return sent, nil
}

// writeFull writes p, looping on short writes. A write that makes no
// progress without an error fails with io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

func abort(stream io.WriteCloser) error {
	if a, ok := stream.(Aborter); ok {
		return a.Abort()
	}
	return stream.Close()
}
