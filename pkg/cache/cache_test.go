package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "segment:abc", []byte("text segment"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "segment:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit || string(data) != "text segment" {
		t.Errorf("got hit=%v data=%q", hit, data)
	}

	if err := c.Delete(ctx, "segment:abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "segment:abc"); hit {
		t.Error("entry survived Delete")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry reported as hit")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h3 := Hash([]byte("world")); h1 == h3 {
		t.Error("different inputs should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	a := k.SegmentKey("sources/q1.xml", "q1.T1", "")
	b := k.SegmentKey("sources/q1.xml", "q1.T1", "")
	if a != b {
		t.Error("segment keys should be deterministic")
	}
	if c := k.SegmentKey("sources/q1.xml", "q1.T1", "q1.T2"); c == a {
		t.Error("span end should change the key")
	}

	l1 := k.LayoutKey("hash", LayoutKeyOpts{Engine: "dot"})
	l2 := k.LayoutKey("hash", LayoutKeyOpts{Engine: "fdp"})
	if l1 == l2 {
		t.Error("engine should change the layout key")
	}

	a1 := k.ArtifactKey("hash", ArtifactKeyOpts{Format: "svg"})
	a2 := k.ArtifactKey("hash", ArtifactKeyOpts{Format: "png", DPI: 300})
	if a1 == a2 {
		t.Error("format should change the artifact key")
	}
}

func TestScopedKeyer(t *testing.T) {
	base := NewDefaultKeyer()
	scoped := NewScopedKeyer(base, "run:42:")

	got := scoped.SegmentKey("p", "e", "")
	want := "run:42:" + base.SegmentKey("p", "e", "")
	if got != want {
		t.Errorf("scoped key = %q, want %q", got, want)
	}
}
