package source

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

// Cache resolves a source URI to a previously downloaded local file. It is
// a collaborator of the Loader: cache absence triggers a fresh download,
// cache presence skips it, and neither affects correctness.
type Cache interface {
	// Resolve returns a local path for the URI, or ok=false on a miss.
	Resolve(uri string) (localPath string, ok bool)

	// Store records a downloaded file for the URI.
	Store(uri, localPath string) error
}

// NopCache is a pass-through cache that never hits.
type NopCache struct{}

// Resolve implements Cache.
func (NopCache) Resolve(string) (string, bool) { return "", false }

// Store implements Cache.
func (NopCache) Store(string, string) error { return nil }

// FileCache is an LRU cache of downloaded source files. Entries are stored
// snappy-compressed under a content directory and decompressed into a
// scratch directory on resolution. Eviction is by least-recently-used entry
// once the compressed total exceeds maxBytes.
type FileCache struct {
	mu       sync.Mutex
	dir      string
	scratch  string
	maxBytes int64
	curBytes int64

	// items maps uri → list element (whose value is *cacheEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	uri       string
	path      string // compressed payload
	ext       string // original file extension, kept for format dispatch
	sizeBytes int64
}

// NewFileCache creates a cache rooted at dir. maxBytes bounds the total
// compressed size (default 4GB when <= 0).
func NewFileCache(dir string, maxBytes int64) (*FileCache, error) {
	if maxBytes <= 0 {
		maxBytes = 4 * 1024 * 1024 * 1024
	}
	scratch := filepath.Join(dir, "scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("cache: failed to create cache directory: %w", err)
	}
	return &FileCache{
		dir:      dir,
		scratch:  scratch,
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}, nil
}

// Resolve returns a decompressed local copy of the cached payload for the
// URI. On a hit the entry is promoted to most-recently-used.
func (c *FileCache) Resolve(uri string) (string, bool) {
	c.mu.Lock()
	elem, ok := c.items[uri]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	entry := elem.Value.(*cacheEntry)

	// Verify the compressed payload still exists and matches.
	info, err := os.Stat(entry.path)
	if err != nil || info.Size() != entry.sizeBytes {
		c.removeLocked(elem)
		c.mu.Unlock()
		return "", false
	}
	c.order.MoveToFront(elem)
	c.mu.Unlock()

	// Each resolution gets its own scratch copy. Concurrent conversions may
	// resolve the same URI at the same time, so a shared path would let one
	// goroutine truncate a file another is reading.
	local, err := c.decompress(entry.path, cacheKey(uri)+"-*"+entry.ext)
	if err != nil {
		c.mu.Lock()
		if elem, ok := c.items[uri]; ok {
			c.removeLocked(elem)
		}
		c.mu.Unlock()
		return "", false
	}
	return local, true
}

// Store compresses and records a downloaded file. Eviction runs after
// insertion until the total compressed size is back under the limit.
func (c *FileCache) Store(uri, localPath string) error {
	path := filepath.Join(c.dir, cacheKey(uri)+".snappy")
	ext := filepath.Ext(localPath)
	sizeBytes, err := c.compress(localPath, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[uri]; ok {
		old := elem.Value.(*cacheEntry)
		c.curBytes -= old.sizeBytes
		old.path = path
		old.ext = ext
		old.sizeBytes = sizeBytes
		c.curBytes += sizeBytes
		c.order.MoveToFront(elem)
	} else {
		entry := &cacheEntry{uri: uri, path: path, ext: ext, sizeBytes: sizeBytes}
		elem := c.order.PushFront(entry)
		c.items[uri] = elem
		c.curBytes += sizeBytes
	}

	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		c.removeLocked(c.order.Back())
	}
	return nil
}

// Size returns the current total compressed size in bytes.
func (c *FileCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached entries.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries and deletes cached payloads.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.order.Len() > 0 {
		c.removeLocked(c.order.Back())
	}
}

// removeLocked removes an element and deletes its payload. Caller holds mu.
func (c *FileCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.uri)
	c.curBytes -= entry.sizeBytes

	// Best-effort delete of the compressed payload
	os.Remove(entry.path)
}

func (c *FileCache) compress(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("cache: failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("cache: failed to create %s: %w", dst, err)
	}
	defer out.Close()

	w := snappy.NewBufferedWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		return 0, fmt.Errorf("cache: compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("cache: compression failed: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// decompress inflates a cached payload into a fresh scratch file named after
// pattern (os.CreateTemp semantics) and returns its path.
func (c *FileCache) decompress(src, pattern string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(c.scratch, pattern)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, snappy.NewReader(in)); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// cacheKey derives a stable filename-safe key from a URI.
func cacheKey(uri string) string {
	h1, h2 := murmur3.Sum128([]byte(uri))
	return fmt.Sprintf("%016x%016x", h1, h2)
}
