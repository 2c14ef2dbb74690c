// Package decoder defines the decode-worker collaborator contract (§1,
// "explicitly out of scope") and supplies one concrete, fully-wired
// implementation so the engine is runnable end to end. Format parsing,
// color science, and GPU rendering stay out of scope; this package only
// implements enough of a resize/crop pipeline, grounded in the teacher's
// internal/imaging package, to produce real bytes for the pipeline and
// cache layers to move around.
package decoder

import "context"

// TargetSize names which fixed render size a request is for.
type TargetSize struct {
	Kind     string // "thumbnail" or "preview"
	LongEdge int    // 512 for thumbnails, 2560 for previews, per §4.3
}

// Decoder renders derivative bytes from source asset bytes, optionally
// applying an opaque edit-state payload. Errors are transport/decoder
// specific; the pipeline classifies them as THUMBNAIL_ERROR.
type Decoder interface {
	// RenderDerivative renders a plain (un-edited) derivative.
	RenderDerivative(ctx context.Context, source []byte, target TargetSize) ([]byte, error)
	// RenderEditedDerivative renders a derivative with an edit-state
	// payload applied first. editState is opaque to every caller except
	// this implementation.
	RenderEditedDerivative(ctx context.Context, source []byte, editState []byte, target TargetSize) ([]byte, error)
}
