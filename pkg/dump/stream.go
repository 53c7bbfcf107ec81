package dump

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ncw/directio"
	retry "github.com/sethvargo/go-retry"
)

// StreamBufferSize is the read-ahead used by sequential streams.
const StreamBufferSize = 1 << 20

// Stream reads a dump front to back, one page at a time.
type Stream struct {
	f      *os.File
	r      io.Reader
	size   int64
	direct bool
}

// StreamOptions tunes OpenStream.
type StreamOptions struct {
	// Offset bytes are skipped before the first page.
	Offset int64
	// Direct bypasses the page cache with O_DIRECT where the filesystem
	// supports it, falling back to buffered reads otherwise.
	Direct bool
	Logger *slog.Logger
}

// OpenStream opens path for a sequential pass.
func OpenStream(ctx context.Context, path string, opts StreamOptions) (*Stream, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if opts.Offset < 0 || opts.Offset > st.Size() {
		return nil, fmt.Errorf("dump: offset %d outside file of %d bytes", opts.Offset, st.Size())
	}

	s := &Stream{size: st.Size()}
	if opts.Direct {
		f, err := directio.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			s.f, s.direct = f, true
			s.r = &alignedReader{f: f, buf: directio.AlignedBlock(StreamBufferSize)}
		} else {
			logger.Warn("direct I/O unavailable, using buffered reads", "path", path, "err", err)
		}
	}
	if s.f == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s.f = f
		if opts.Offset > 0 {
			if _, err := f.Seek(opts.Offset, io.SeekStart); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		s.r = bufio.NewReaderSize(f, StreamBufferSize)
		return s, nil
	}

	// O_DIRECT reads must stay block aligned, so the offset is consumed
	// from the stream instead of seeking.
	if opts.Offset > 0 {
		if _, err := io.CopyN(io.Discard, s.r, opts.Offset); err != nil {
			_ = s.f.Close()
			return nil, fmt.Errorf("dump: skip offset: %w", err)
		}
	}
	return s, nil
}

// Size is the total file size, offset included.
func (s *Stream) Size() int64 { return s.size }

// Direct reports whether the stream bypasses the page cache.
func (s *Stream) Direct() bool { return s.direct }

// ReadPage fills buf with the next page. It returns io.EOF at a clean end of
// file and io.ErrUnexpectedEOF for a truncated final page. Interrupted reads
// are retried.
func (s *Stream) ReadPage(ctx context.Context, buf []byte) error {
	n := 0
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(5*time.Millisecond))
	for n < len(buf) {
		err := retry.Do(ctx, backoff, func(context.Context) error {
			k, err := s.r.Read(buf[n:])
			n += k
			if err != nil && transient(err) {
				return retry.RetryableError(err)
			}
			return err
		})
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if n == 0 {
				return io.EOF
			}
			if n < len(buf) {
				return io.ErrUnexpectedEOF
			}
		default:
			return fmt.Errorf("dump: read: %w", err)
		}
	}
	return nil
}

func (s *Stream) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func transient(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// alignedReader serves a byte stream from block-aligned reads into an
// aligned buffer, as O_DIRECT requires.
type alignedReader struct {
	f    *os.File
	buf  []byte
	r, w int
	err  error
}

func (a *alignedReader) Read(p []byte) (int, error) {
	for a.r == a.w {
		if a.err != nil {
			err := a.err
			if transient(err) {
				a.err = nil
			}
			return 0, err
		}
		a.r = 0
		a.w, a.err = io.ReadFull(a.f, a.buf)
		if errors.Is(a.err, io.ErrUnexpectedEOF) {
			a.err = io.EOF
		}
	}
	n := copy(p, a.buf[a.r:a.w])
	a.r += n
	return n, nil
}

// Writer is a buffered output file created fresh for one run.
type Writer struct {
	f *os.File
	w *bufio.Writer
}

// Create truncates or creates path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("dump: create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriterSize(f, StreamBufferSize)}, nil
}

func (w *Writer) Write(p []byte) (int, error) { return w.w.Write(p) }

// Close flushes buffered bytes and closes the file.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.w.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	return err
}
