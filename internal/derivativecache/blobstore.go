package derivativecache

import "context"

// BlobStore is the persistent tier's storage contract. Two implementations
// exist: a local-disk store (default, grounded in the content-addressed
// directory technique from walkthru-earth-imagery-desktop's tile cache) and
// an S3/R2-backed store (grounded in the teacher's R2Client) for server
// deployments that prefer object storage for the derivative cache tier.
//
// Persistent-tier unavailability is never fatal to the cache (§4.1's
// failure model) — callers are expected to treat any BlobStore error as a
// degrade-to-memory-only signal, not propagate it to the UI.
type BlobStore interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Put(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
