package walk

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ben-ranford/islet/internal/resolve"
	"github.com/ben-ranford/islet/internal/safeio"
)

// Loader reads a file's raw text.
type Loader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

type LoaderFunc func(ctx context.Context, path string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// FileLoader reads from disk, confined to Root when one is set.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(l.Root) == "" {
		return safeio.ReadFile(path)
	}
	return safeio.ReadFileUnder(l.Root, path)
}

type ContentStats struct {
	Hits   int
	Misses int
}

// ContentCache holds raw file text for the lifetime of a session. Each path
// is read from storage at most once, even when first requested by several
// goroutines at the same time. Failed reads are not cached.
type ContentCache struct {
	loader Loader
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string][]byte
	stats   ContentStats
}

func NewContentCache(loader Loader) *ContentCache {
	if loader == nil {
		loader = FileLoader{}
	}
	return &ContentCache{
		loader:  loader,
		entries: make(map[string][]byte),
	}
}

func (c *ContentCache) Read(ctx context.Context, path string) ([]byte, error) {
	if content, ok := c.lookup(path); ok {
		return content, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The load is shared by every concurrent reader of path, so one reader
	// giving up must not cancel it for the others.
	loadCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(path, func() (any, error) {
		if content, ok := c.peek(path); ok {
			return content, nil
		}
		content, err := c.loader.Load(loadCtx, path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[path] = content
		c.stats.Misses++
		c.mu.Unlock()
		return content, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *ContentCache) lookup(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.entries[path]
	if ok {
		c.stats.Hits++
	}
	return content, ok
}

func (c *ContentCache) peek(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.entries[path]
	return content, ok
}

// Seed stores content for path without touching storage, as when the host
// already holds a document's text.
func (c *ContentCache) Seed(path string, content []byte) {
	c.mu.Lock()
	if _, ok := c.entries[path]; !ok {
		c.entries[path] = content
	}
	c.mu.Unlock()
}

func (c *ContentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ContentCache) Stats() ContentStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *ContentCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.stats = ContentStats{}
	c.mu.Unlock()
}

type ResolveStats struct {
	First   int
	Repeats int
}

// MemoResolver records which specifiers have been requested. Every request
// still reaches the wrapped resolver; repeats are answered by that
// resolver's own cache. The memo never stores resolved values.
// Repeats keep their importer: relative specifiers mean different files
// under different importers.
type MemoResolver struct {
	next resolve.Resolver

	mu    sync.Mutex
	seen  map[string]struct{}
	stats ResolveStats
}

func NewMemoResolver(next resolve.Resolver) *MemoResolver {
	return &MemoResolver{next: next, seen: make(map[string]struct{})}
}

func (m *MemoResolver) Resolve(ctx context.Context, specifier string, importer string) (*resolve.ResolvedID, error) {
	m.markSeen(specifier)
	return m.next.Resolve(ctx, specifier, importer)
}

// markSeen reports whether specifier had been requested before.
func (m *MemoResolver) markSeen(specifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[specifier]; ok {
		m.stats.Repeats++
		return true
	}
	m.seen[specifier] = struct{}{}
	m.stats.First++
	return false
}

func (m *MemoResolver) Seen(specifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[specifier]
	return ok
}

func (m *MemoResolver) Stats() ResolveStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MemoResolver) Reset() {
	m.mu.Lock()
	m.seen = make(map[string]struct{})
	m.stats = ResolveStats{}
	m.mu.Unlock()
}
