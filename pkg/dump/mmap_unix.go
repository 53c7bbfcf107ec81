//go:build linux || darwin

package dump

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

type mappedImage struct {
	f    *os.File
	data []byte
}

func openMapped(f *os.File, size int64) (Image, error) {
	if int64(int(size)) != size {
		return &fileImage{f: f, size: size}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("dump: mmap failed: %w", err)
	}
	// Sampling jumps across the file; readahead only wastes page cache.
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return &mappedImage{f: f, data: data}, nil
}

func (m *mappedImage) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("dump: negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mappedImage) Size() int64 { return int64(len(m.data)) }

func (m *mappedImage) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
