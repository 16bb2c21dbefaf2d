package objpipe

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Sha1Map is the on-disk --sha1-map cache: a line-oriented "cache-key\tblob-sha" file keyed by
// (gitattributes-tree, path, source-hash, format-spec-hash), fronted by a
// bounded in-memory LRU so repeated lookups within a run don't reparse
// the file.
type Sha1Map struct {
	path  string
	cache *lru.Cache[string, string]
	mu    sync.Mutex
	dirty map[string]string
}

// Key builds the cache key for one blob transform result.
func Key(gitattributesTreeSha, path, sourceSha, formatSpecSha string) string {
	return strings.Join([]string{gitattributesTreeSha, path, sourceSha, formatSpecSha}, "\t")
}

// OpenSha1Map loads an existing sha1-map file (if path is non-empty and
// exists) into a bounded LRU cache of the given size.
func OpenSha1Map(path string, size int) (*Sha1Map, error) {
	if size <= 0 {
		size = 65536
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	m := &Sha1Map{path: path, cache: cache, dirty: map[string]string{}}
	if path == "" {
		return m, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("objpipe: sha1-map: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		tab := strings.LastIndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		m.cache.Add(line[:tab], line[tab+1:])
	}
	return m, scanner.Err()
}

// Get looks up a cached blob sha for key.
func (m *Sha1Map) Get(key string) (string, bool) {
	return m.cache.Get(key)
}

// Put records a new cache entry and marks it for flush to disk.
func (m *Sha1Map) Put(key, sha string) {
	m.cache.Add(key, sha)
	m.mu.Lock()
	m.dirty[key] = sha
	m.mu.Unlock()
}

// Flush appends every entry recorded since open/last-flush to the
// backing file.
func (m *Sha1Map) Flush() error {
	if m.path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		return nil
	}
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("objpipe: sha1-map: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for k, v := range m.dirty {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", k, v); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	m.dirty = map[string]string{}
	return nil
}
