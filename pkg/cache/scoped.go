package cache

// ScopedKeyer wraps a Keyer with a prefix so separate runs or corpora
// can share one backend without key collisions.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) SegmentKey(path, elementID, to string) string {
	return k.prefix + k.inner.SegmentKey(path, elementID, to)
}

func (k *ScopedKeyer) LayoutKey(dotHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(dotHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(dotHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(dotHash, opts)
}
