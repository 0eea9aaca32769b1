// Package cache provides the run-scoped byte caches used by the
// pipeline: resolved text segments, layout coordinate sets, and
// rendered artifacts. Backends share one interface so the CLI can run
// with a file cache, a Redis cache, or no cache at all.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with a TTL.
type Cache interface {
	// Get returns the value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Time-to-live per entry class. Segments follow the source documents,
// which rarely change; layouts and artifacts are cheap to rebuild.
const (
	TTLSegment  = 7 * 24 * time.Hour
	TTLLayout   = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// LayoutKeyOpts parameterizes layout cache keys.
type LayoutKeyOpts struct {
	Engine string
}

// ArtifactKeyOpts parameterizes rendered artifact cache keys.
type ArtifactKeyOpts struct {
	Format string
	Engine string
	Size   string
	DPI    int
}

// Keyer builds cache keys for each entry class. Implementations must
// be deterministic: equal inputs always produce the same key.
type Keyer interface {
	// SegmentKey keys a resolved text segment by source path, element
	// ID and the optional span end reference.
	SegmentKey(path, elementID, to string) string

	// LayoutKey keys a laid-out coordinate set by the DOT content hash.
	LayoutKey(dotHash string, opts LayoutKeyOpts) string

	// ArtifactKey keys a rendered output by the DOT content hash.
	ArtifactKey(dotHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

func (k *DefaultKeyer) SegmentKey(path, elementID, to string) string {
	return hashKey("segment", path, elementID, to)
}

func (k *DefaultKeyer) LayoutKey(dotHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", dotHash, opts)
}

func (k *DefaultKeyer) ArtifactKey(dotHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", dotHash, opts)
}
