// Package scanner implements the scan pipeline of §4.5: a cancellable
// recursive walk of a folder handle that emits batches of discovered
// files to a consumer. This deployment has no browser File System Access
// API, so scanning walks real filesystem paths via os.ReadDir, in the
// teacher's plain-stdlib style rather than any virtualized directory
// abstraction.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/model"
)

// DefaultBatchSize is the number of records accumulated before a batch is
// flushed to the consumer, per §4.5.
const DefaultBatchSize = 50

// Scanner walks a folder root and emits batches of supported image files.
type Scanner struct {
	batchSize int
	log       *slog.Logger
}

// New constructs a scanner with the given batch size (DefaultBatchSize if
// zero or negative).
func New(batchSize int, log *slog.Logger) *Scanner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{batchSize: batchSize, log: log}
}

// Scan walks root, invoking emit with each filled batch and a final
// partial batch on completion. recursive controls whether subdirectories
// are descended into (§4.5's Scan contract: "recursive (default true)").
// ctx is checked at each batch boundary and at each directory descent
// (§4.5) so a cancelled scan stops promptly even mid-directory. progress
// is invoked after each batch is emitted.
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool, emit func(model.ScanBatch) error, progress func(model.ScanProgress)) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return catalogerr.Wrap(catalogerr.FolderNotFound, "folder not found", err)
		}
		if os.IsPermission(err) {
			return catalogerr.Wrap(catalogerr.PermissionDenied, "permission denied", err)
		}
		return catalogerr.Wrap(catalogerr.Unknown, "stat folder", err)
	}
	if !info.IsDir() {
		return catalogerr.New(catalogerr.FolderNotFound, "not a directory")
	}

	st := &scanState{
		scanner:   s,
		root:      root,
		recursive: recursive,
		emit:      emit,
		prog:      progress,
		batch:     make(model.ScanBatch, 0, s.batchSize),
	}

	if err := st.walk(ctx, root); err != nil {
		return err
	}
	return st.flush(ctx)
}

type scanState struct {
	scanner   *Scanner
	root      string
	recursive bool
	emit      func(model.ScanBatch) error
	prog      func(model.ScanProgress)
	batch     model.ScanBatch
	progress  model.ScanProgress
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return catalogerr.Wrap(catalogerr.ScanCancelled, "scan cancelled", ctx.Err())
	default:
		return nil
	}
}

func (st *scanState) walk(ctx context.Context, dir string) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			st.scanner.log.Warn("skipping unreadable directory", "dir", dir, "error", err)
			return nil
		}
		return catalogerr.Wrap(catalogerr.Unknown, "read directory", err)
	}

	// Deterministic order makes scan output reproducible, which matters
	// for tests and for stable "recently added" ordering within a batch.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var subdirs []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if st.recursive {
				subdirs = append(subdirs, full)
			}
			continue
		}
		if err := st.visitFile(ctx, full, entry); err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		if err := st.walk(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func (st *scanState) visitFile(ctx context.Context, path string, entry os.DirEntry) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
	if !model.SupportedExtensions[ext] {
		return nil
	}

	fi, err := entry.Info()
	if err != nil {
		st.scanner.log.Warn("skipping unreadable file", "path", path, "error", err)
		return nil
	}

	captured := path
	relPath, err := filepath.Rel(st.root, path)
	if err != nil {
		relPath = entry.Name()
	}
	record := model.ScanRecord{
		Path:       filepath.ToSlash(relPath),
		Filename:   entry.Name(),
		Ext:        ext,
		ByteSize:   fi.Size(),
		ModifiedAt: fi.ModTime(),
		Bytes: func() ([]byte, error) {
			return os.ReadFile(captured)
		},
	}

	st.batch = append(st.batch, record)
	st.progress.FilesSeen++

	if len(st.batch) >= st.scanner.batchSize {
		return st.flush(ctx)
	}
	return nil
}

func (st *scanState) flush(ctx context.Context) error {
	if len(st.batch) == 0 {
		return nil
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	batch := st.batch
	st.batch = make(model.ScanBatch, 0, st.scanner.batchSize)

	if err := st.emit(batch); err != nil {
		return err
	}
	if st.prog != nil {
		st.prog(st.progress)
	}
	return nil
}
