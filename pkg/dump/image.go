// Package dump gives read access to raw flash images: a memory-mapped,
// random-access view for sampling and a sequential page stream for full
// passes.
package dump

import (
	"fmt"
	"io"
	"os"
)

// Image is a read-only random-access view of a dump file.
type Image interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// Open maps path for random access. Platforms without mmap, and empty
// files, fall back to plain positional reads.
func Open(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("dump: %s is a directory", path)
	}
	if st.Size() == 0 {
		return &fileImage{f: f}, nil
	}
	return openMapped(f, st.Size())
}

type fileImage struct {
	f    *os.File
	size int64
}

func (i *fileImage) ReadAt(p []byte, off int64) (int, error) { return i.f.ReadAt(p, off) }

func (i *fileImage) Size() int64 { return i.size }

func (i *fileImage) Close() error {
	if i.f == nil {
		return nil
	}
	err := i.f.Close()
	i.f = nil
	return err
}
