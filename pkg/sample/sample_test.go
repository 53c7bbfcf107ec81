package sample

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickPagesDeterministic(t *testing.T) {
	a := PickPages(100000, 64, 123)
	b := PickPages(100000, 64, 123)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.True(t, sort.SliceIsSorted(a, func(i, j int) bool { return a[i] < a[j] }))

	seen := map[int64]bool{}
	for _, v := range a {
		require.False(t, seen[v], "duplicate %d", v)
		require.True(t, v >= 0 && v < 100000)
		seen[v] = true
	}

	require.NotEqual(t, a, PickPages(100000, 64, 124))
}

func TestPickPagesAll(t *testing.T) {
	for _, n := range []int64{1, 10, 64} {
		got := PickPages(n, 64, 1)
		require.Len(t, got, int(n))
		for i, v := range got {
			require.Equal(t, int64(i), v)
		}
	}
	require.Empty(t, PickPages(0, 64, 1))
	require.Len(t, PickPages(65, 64, 1), 64)
}

func TestReadPagesDropsShortTail(t *testing.T) {
	data := make([]byte, 10*100+30)
	for i := range data {
		data[i] = byte(i / 100)
	}
	r := bytes.NewReader(data)

	pages, err := ReadPages(context.Background(), r, 100, 0, []int64{0, 4, 9, 10, 11})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, byte(4), pages[1][0])
	require.Equal(t, byte(9), pages[2][99])
}

func TestReadPagesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadPages(ctx, bytes.NewReader(make([]byte, 1000)), 100, 0, []int64{0})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSampleFile(t *testing.T) {
	data := make([]byte, 16+50*64)
	for i := 16; i < len(data); i++ {
		data[i] = byte((i - 16) / 64)
	}
	path := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	pages, err := Sample(context.Background(), path, 64, 16, 8, 99)
	require.NoError(t, err)
	require.Len(t, pages, 8)

	idx := PickPages(50, 8, 99)
	for i, p := range pages {
		require.Equal(t, byte(idx[i]), p[0])
	}

	loaded, err := LoadPages(context.Background(), path, 64, 16, idx)
	require.NoError(t, err)
	require.Equal(t, pages, loaded)

	require.Equal(t, int64(50), TotalPages(int64(len(data)), 64, 16))
	require.Zero(t, TotalPages(10, 64, 16))
}
