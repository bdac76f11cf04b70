// Package cache memoizes file text, line arrays and parsed syntax models keyed
// by path and content hash, so every detector shares one parse per file.
package cache

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/parser"
	"connascence/internal/shared/observability"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Parser is the slice of the source parser the cache depends on.
type Parser interface {
	Parse(path string, content []byte) (*parser.File, error)
}

type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Parses        int64   `json:"parses"`
	Invalidations int64   `json:"invalidations"`
	Evictions     int64   `json:"evictions"`
	Entries       int     `json:"entries"`
	HitRate       float64 `json:"hit_rate"`
}

// entry is immutable except for the lazily derived lines and tree.
type entry struct {
	path    string
	hash    uint64
	text    []byte
	modTime time.Time
	size    int64

	mu         sync.Mutex
	lines      []string
	linesReady bool
	tree       *parser.File
	treeErr    error
	parsed     bool
}

type SourceCache struct {
	parser  Parser
	entries *LRU[string, *entry]
	group   singleflight.Group

	hits          atomic.Int64
	misses        atomic.Int64
	parses        atomic.Int64
	invalidations atomic.Int64
	evictions     atomic.Int64
}

func New(p Parser, maxEntries int) *SourceCache {
	c := &SourceCache{parser: p}
	c.entries = NewLRU[string, *entry](maxEntries, func(path string, _ *entry) {
		c.evictions.Add(1)
		observability.CacheEvictionsTotal.Inc()
		slog.Debug("source cache eviction", "path", path)
	})
	return c
}

// GetText returns the file content. The returned slice is shared and must not
// be modified.
func (c *SourceCache) GetText(path string) ([]byte, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return e.text, nil
}

// ContentHash returns the xxhash of the current file content.
func (c *SourceCache) ContentHash(path string) (uint64, error) {
	e, err := c.load(path)
	if err != nil {
		return 0, err
	}
	return e.hash, nil
}

// GetLines returns the file split into lines without terminators. An empty
// file has zero lines.
func (c *SourceCache) GetLines(path string) ([]string, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.linesReady {
		e.lines = splitLines(e.text)
		e.linesReady = true
	}
	return e.lines, nil
}

// GetTree returns the syntax model for the current content, parsing at most
// once per content hash. A parse failure is remembered for that hash.
func (c *SourceCache) GetTree(path string) (*parser.File, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.parsed {
		tree, treeErr := e.tree, e.treeErr
		e.mu.Unlock()
		return tree, treeErr
	}
	e.mu.Unlock()

	key := path + "@" + strconv.FormatUint(e.hash, 16)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		e.mu.Lock()
		if e.parsed {
			defer e.mu.Unlock()
			return e.tree, e.treeErr
		}
		e.mu.Unlock()

		c.parses.Add(1)
		tree, err := c.parser.Parse(path, e.text)
		if err != nil {
			tree = nil
			if !coreerrors.IsCode(err, coreerrors.CodeParse) && !coreerrors.IsCode(err, coreerrors.CodeNotSupported) {
				err = coreerrors.AddContext(coreerrors.Wrap(err, coreerrors.CodeParse, "parse failed"), coreerrors.CtxPath, path)
			}
		}
		e.mu.Lock()
		e.tree, e.treeErr, e.parsed = tree, err, true
		e.mu.Unlock()
		return tree, err
	})
	tree, _ := v.(*parser.File)

	// A shared flight may have stored its result on a sibling entry.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.parsed {
		e.tree, e.treeErr, e.parsed = tree, err, true
	}
	return e.tree, e.treeErr
}

// Invalidate drops everything cached for path.
func (c *SourceCache) Invalidate(path string) {
	if c.entries.Remove(path) {
		c.invalidations.Add(1)
		observability.CacheEntries.Set(float64(c.entries.Len()))
		slog.Debug("source cache invalidated", "path", path)
	}
}

func (c *SourceCache) Stats() Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Parses:        c.parses.Load(),
		Invalidations: c.invalidations.Load(),
		Evictions:     c.evictions.Load(),
		Entries:       c.entries.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// load returns a fresh entry for path. The file is re-read whenever its size
// or modification time differ from the cached entry; an unchanged hash keeps
// the derived lines and tree.
func (c *SourceCache) load(path string) (*entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.entries.Remove(path)
		return nil, ioError(path, "stat", err)
	}
	if info.IsDir() {
		return nil, ioError(path, "stat", coreerrors.New(coreerrors.CodeValidationError, "path is a directory"))
	}

	prev, cached := c.entries.Get(path)
	if cached && prev.size == info.Size() && prev.modTime.Equal(info.ModTime()) {
		c.hits.Add(1)
		observability.CacheHitsTotal.Inc()
		return prev, nil
	}

	c.misses.Add(1)
	observability.CacheMissesTotal.Inc()

	data, err := os.ReadFile(path)
	if err != nil {
		c.entries.Remove(path)
		return nil, ioError(path, "read", err)
	}

	next := &entry{
		path:    path,
		hash:    xxhash.Sum64(data),
		text:    data,
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if cached && prev.hash == next.hash {
		prev.mu.Lock()
		next.lines, next.linesReady = prev.lines, prev.linesReady
		next.tree, next.treeErr, next.parsed = prev.tree, prev.treeErr, prev.parsed
		prev.mu.Unlock()
	}
	c.entries.Put(path, next)
	observability.CacheEntries.Set(float64(c.entries.Len()))
	return next, nil
}

func ioError(path, op string, err error) error {
	wrapped := coreerrors.Wrap(err, coreerrors.CodeCacheIO, "cannot read source file")
	wrapped = coreerrors.AddContext(wrapped, coreerrors.CtxPath, path)
	return coreerrors.AddContext(wrapped, coreerrors.CtxOperation, op)
}

func splitLines(text []byte) []string {
	if len(text) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(text), "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
