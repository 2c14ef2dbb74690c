package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/model"
)

// ErrPickerCancelled is returned by a FolderPicker when the user backs
// out of the picking flow; the coordinator treats this as a silent
// no-op rather than a surfaced error (§4.6 "Select folder").
var ErrPickerCancelled = errors.New("folder picker cancelled")

// LocalDirectoryHandle wraps an absolute filesystem path, realizing §6's
// "opaque directory handle" the way §9's design notes explicitly permit
// for environments without a real capability API: "substitute a wrapper
// over a path string ... the persistence of the handle becomes trivial".
type LocalDirectoryHandle struct {
	root string
}

// NewLocalDirectoryHandle wraps an absolute (or absolute-able) path.
func NewLocalDirectoryHandle(path string) (*LocalDirectoryHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &LocalDirectoryHandle{root: abs}, nil
}

func (h *LocalDirectoryHandle) Serialize() string { return h.root }
func (h *LocalDirectoryHandle) Path() string      { return h.root }

// QueryPermission stats the root; a readable directory is "granted", a
// permission error is "denied", and a missing directory is "prompt" (the
// OS may not reliably re-grant access once a path has moved, per §9) —
// the caller (LoadFromPersistence) treats anything but granted as
// "can't restore without help".
func (h *LocalDirectoryHandle) QueryPermission(context.Context) (PermissionStatus, error) {
	info, err := os.Stat(h.root)
	if err != nil {
		if os.IsPermission(err) {
			return PermissionDenied, nil
		}
		if os.IsNotExist(err) {
			return PermissionPrompt, nil
		}
		return PermissionPrompt, nil
	}
	if !info.IsDir() {
		return PermissionDenied, nil
	}
	f, err := os.Open(h.root)
	if err != nil {
		if os.IsPermission(err) {
			return PermissionDenied, nil
		}
		return PermissionPrompt, nil
	}
	f.Close()
	return PermissionGranted, nil
}

// RequestPermission has no interactive prompt to offer for a plain path,
// so it degrades to QueryPermission, per §9's guidance for this
// substitution.
func (h *LocalDirectoryHandle) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	return h.QueryPermission(ctx)
}

// OpenFile returns a lazy producer that reads relPath (slash-separated,
// relative to h.root) at invocation time — not at construction time, so
// a file overwritten between request and render is read fresh.
func (h *LocalDirectoryHandle) OpenFile(relPath string) model.BytesProducer {
	root := h.root
	segments := strings.Split(relPath, "/")
	full := filepath.Join(append([]string{root}, segments...)...)
	return func() ([]byte, error) {
		return os.ReadFile(full)
	}
}

// LocalFolderPicker resolves a directory handle from a path fixed when the
// picker is constructed (catalogctl's path argument, or the server's
// CATALOG_ROOT environment variable), since there is no browser
// file-picker dialog in this deployment. Every Pick resolves that same
// path; an empty path reads as a user cancel.
type LocalFolderPicker struct {
	path string
}

// NewLocalFolderPicker captures the path the next Pick call will resolve.
func NewLocalFolderPicker(path string) *LocalFolderPicker {
	return &LocalFolderPicker{path: path}
}

func (p *LocalFolderPicker) Pick(context.Context) (DirectoryHandle, error) {
	if p.path == "" {
		return nil, ErrPickerCancelled
	}
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, catalogerr.Wrap(catalogerr.FolderNotFound, "folder not found", err)
		}
		return nil, catalogerr.Wrap(catalogerr.Unknown, "stat folder", err)
	}
	if !info.IsDir() {
		return nil, catalogerr.New(catalogerr.FolderNotFound, "path is not a directory")
	}
	return NewLocalDirectoryHandle(p.path)
}
