package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/model"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestScanCollectsSupportedExtensionsOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), 10)
	writeFile(t, filepath.Join(root, "b.txt"), 10)
	writeFile(t, filepath.Join(root, "sub", "c.ARW"), 20)

	s := New(50, nil)
	var all model.ScanBatch
	err := s.Scan(context.Background(), root, true, func(b model.ScanBatch) error {
		all = append(all, b...)
		return nil
	}, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	exts := map[string]bool{}
	for _, r := range all {
		exts[r.Ext] = true
	}
	require.True(t, exts["jpg"])
	require.True(t, exts["arw"], "extension matching must be case-insensitive")
}

func TestScanBatchesAtThreshold(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, string(rune('a'+i))+".jpg"), 1)
	}

	s := New(2, nil)
	var batchSizes []int
	err := s.Scan(context.Background(), root, true, func(b model.ScanBatch) error {
		batchSizes = append(batchSizes, len(b))
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 1}, batchSizes, "batches flush at threshold, plus a final partial batch")
}

func TestScanMissingFolderReturnsFolderNotFound(t *testing.T) {
	s := New(50, nil)
	err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), true, func(model.ScanBatch) error { return nil }, nil)
	require.Error(t, err)
	require.Equal(t, catalogerr.FolderNotFound, catalogerr.CodeOf(err))
}

func TestScanNonRecursiveSkipsSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), 1)
	writeFile(t, filepath.Join(root, "sub", "b.jpg"), 1)

	s := New(50, nil)
	var names []string
	err := s.Scan(context.Background(), root, false, func(b model.ScanBatch) error {
		for _, r := range b {
			names = append(names, r.Filename)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a.jpg"}, names, "non-recursive scan must not descend into subdirectories")
}

func TestScanCancellationStopsPromptly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(root, "dir"+string(rune('a'+i)), "f.jpg"), 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before the walk starts

	s := New(2, nil)
	err := s.Scan(ctx, root, true, func(model.ScanBatch) error { return nil }, nil)
	require.Error(t, err)
	require.Equal(t, catalogerr.ScanCancelled, catalogerr.CodeOf(err))
}

func TestScanCancellationStopsMidDirectoryBetweenBatches(t *testing.T) {
	// All files live in one directory needing several batch flushes, so
	// cancelling after the first flush must be observed at the next batch
	// boundary rather than only at the next directory descent.
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(root, string(rune('a'+i))+".jpg"), 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	flushes := 0
	s := New(2, nil)
	err := s.Scan(ctx, root, true, func(model.ScanBatch) error {
		flushes++
		if flushes == 1 {
			cancel()
		}
		return nil
	}, nil)
	require.Error(t, err)
	require.Equal(t, catalogerr.ScanCancelled, catalogerr.CodeOf(err))
	require.Equal(t, 1, flushes, "scan must stop at the next batch boundary after cancellation, not continue to completion")
}

func TestScanReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), 1)
	writeFile(t, filepath.Join(root, "b.jpeg"), 1)

	s := New(50, nil)
	var last model.ScanProgress
	err := s.Scan(context.Background(), root, true, func(model.ScanBatch) error { return nil }, func(p model.ScanProgress) {
		last = p
	})
	require.NoError(t, err)
	require.Equal(t, 2, last.FilesSeen)
}

func TestScanProducerReadsFileBytes(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.jpg")
	writeFile(t, path, 0)
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	s := New(50, nil)
	var rec model.ScanRecord
	err := s.Scan(context.Background(), root, true, func(b model.ScanBatch) error {
		rec = b[0]
		return nil
	}, nil)
	require.NoError(t, err)

	data, err := rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestScanIsDeterministicNotTimeFlaky(t *testing.T) {
	// Guards against accidental reliance on wall-clock ordering; scan
	// order must depend only on filesystem contents.
	start := time.Now()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.jpg"), 1)
	writeFile(t, filepath.Join(root, "a.jpg"), 1)

	s := New(50, nil)
	var names []string
	err := s.Scan(context.Background(), root, true, func(b model.ScanBatch) error {
		for _, r := range b {
			names = append(names, r.Filename)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a.jpg", "z.jpg"}, names)
	require.Less(t, time.Since(start), 5*time.Second)
}
