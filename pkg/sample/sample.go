// Package sample reads a bounded, reproducible subset of pages from a dump.
package sample

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/weaviate/sroar"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
)

// PickPages returns count distinct page indices below total, sorted
// ascending. The same arguments always give the same set. When total does
// not exceed count every index is returned.
func PickPages(total int64, count int, seed int64) []int64 {
	if total <= 0 || count <= 0 {
		return nil
	}
	if total <= int64(count) {
		out := make([]int64, total)
		for i := range out {
			out[i] = int64(i)
		}
		return out
	}

	// Floyd's algorithm: exactly count draws, no rejection loop.
	rng := rand.New(rand.NewSource(seed))
	set := sroar.NewBitmap()
	for j := total - int64(count); j < total; j++ {
		v := rng.Int63n(j + 1)
		if set.Contains(uint64(v)) {
			v = j
		}
		set.Set(uint64(v))
	}

	arr := set.ToArray()
	out := make([]int64, len(arr))
	for i, v := range arr {
		out[i] = int64(v)
	}
	return out
}

// TotalPages is the number of whole raw pages after offset.
func TotalPages(size int64, rawPage int, offset int64) int64 {
	if rawPage <= 0 || offset < 0 || offset >= size {
		return 0
	}
	return (size - offset) / int64(rawPage)
}

// ReadPages reads the raw pages at idx. A short read, such as a truncated
// final page, ends sampling without an error.
func ReadPages(ctx context.Context, r io.ReaderAt, rawPage int, offset int64, idx []int64) ([][]byte, error) {
	if rawPage <= 0 {
		return nil, fmt.Errorf("sample: raw page size %d", rawPage)
	}
	pages := make([][]byte, 0, len(idx))
	for _, i := range idx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]byte, rawPage)
		n, err := r.ReadAt(buf, offset+i*int64(rawPage))
		if n < rawPage {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("sample: read page %d: %w", i, err)
			}
			break
		}
		pages = append(pages, buf)
	}
	return pages, nil
}

// Pages picks count pages from r (size bytes long) and reads them.
func Pages(ctx context.Context, r io.ReaderAt, size int64, rawPage int, offset int64, count int, seed int64) ([][]byte, error) {
	idx := PickPages(TotalPages(size, rawPage, offset), count, seed)
	return ReadPages(ctx, r, rawPage, offset, idx)
}

// LoadPages opens path and reads the pages at idx.
func LoadPages(ctx context.Context, path string, rawPage int, offset int64, idx []int64) ([][]byte, error) {
	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return ReadPages(ctx, img, rawPage, offset, idx)
}

// Sample opens path, picks count pages with seed and reads them.
func Sample(ctx context.Context, path string, rawPage int, offset int64, count int, seed int64) ([][]byte, error) {
	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return Pages(ctx, img, img.Size(), rawPage, offset, count, seed)
}
