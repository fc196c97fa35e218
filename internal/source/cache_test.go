package source

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// cacheFixture writes size bytes of seeded pseudo-random data, which snappy
// cannot meaningfully compress; eviction tests rely on that.
func cacheFixture(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.geojson")
	data := make([]byte, size)
	rand.New(rand.NewSource(42)).Read(data)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileCacheRoundTrip(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileCache failed: %v", err)
	}

	if _, ok := cache.Resolve("https://example.com/a.geojson"); ok {
		t.Fatal("empty cache should miss")
	}

	src := cacheFixture(t, 4096)
	original, _ := os.ReadFile(src)
	if err := cache.Store("https://example.com/a.geojson", src); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	local, ok := cache.Resolve("https://example.com/a.geojson")
	if !ok {
		t.Fatal("expected cache hit")
	}
	restored, err := os.ReadFile(local)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(original, restored) {
		t.Error("cached payload corrupted through compression round trip")
	}
	if filepath.Ext(local) != ".geojson" {
		t.Errorf("resolved file should keep the source extension, got %q", filepath.Ext(local))
	}
}

func TestFileCacheResolveGivesPrivateCopies(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	src := cacheFixture(t, 1024)
	original, _ := os.ReadFile(src)
	if err := cache.Store("u://shared.geojson", src); err != nil {
		t.Fatal(err)
	}

	first, ok := cache.Resolve("u://shared.geojson")
	if !ok {
		t.Fatal("expected cache hit")
	}
	second, ok := cache.Resolve("u://shared.geojson")
	if !ok {
		t.Fatal("expected cache hit")
	}
	// Parallel conversions of the same URI each read their own scratch
	// file; a second resolution must not truncate the first.
	if first == second {
		t.Fatalf("both resolutions returned %q", first)
	}
	for _, path := range []string{first, second} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(original, data) {
			t.Errorf("scratch copy %q corrupted", path)
		}
		if filepath.Ext(path) != ".geojson" {
			t.Errorf("scratch copy %q lost the source extension", path)
		}
	}
}

func TestFileCacheEviction(t *testing.T) {
	// Random-ish payloads compress poorly enough that three entries exceed
	// the limit sized for two.
	src := cacheFixture(t, 2048)
	cache, err := NewFileCache(t.TempDir(), 3000)
	if err != nil {
		t.Fatal(err)
	}

	uris := []string{"u://1", "u://2", "u://3"}
	for _, uri := range uris {
		if err := cache.Store(uri, src); err != nil {
			t.Fatalf("Store %s failed: %v", uri, err)
		}
	}

	if cache.Len() >= 3 {
		t.Errorf("Len = %d, expected eviction below 3", cache.Len())
	}
	if _, ok := cache.Resolve("u://3"); !ok {
		t.Error("most recent entry should survive eviction")
	}
}

func TestFileCacheMissOnDeletedPayload(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	src := cacheFixture(t, 128)
	if err := cache.Store("u://x", src); err != nil {
		t.Fatal(err)
	}

	// Remove the compressed payload behind the cache's back.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !e.IsDir() {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}

	if _, ok := cache.Resolve("u://x"); ok {
		t.Error("expected miss after payload deletion")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, stale entry should be dropped", cache.Len())
	}
}

func TestFileCacheClear(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	src := cacheFixture(t, 64)
	cache.Store("u://1", src)
	cache.Store("u://2", src)

	cache.Clear()
	if cache.Len() != 0 || cache.Size() != 0 {
		t.Errorf("Len = %d, Size = %d after Clear", cache.Len(), cache.Size())
	}
}

func TestNopCache(t *testing.T) {
	var cache NopCache
	if err := cache.Store("u://x", "/tmp/x"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Resolve("u://x"); ok {
		t.Error("NopCache must never hit")
	}
}
