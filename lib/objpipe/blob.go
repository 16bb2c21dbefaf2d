package objpipe

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/semaphore"
)

// Transformer is the content-transform capability interface:
// SVN-keyword expansion and the C-source indent reformatter
// are both instances of it, selected by which transformers the caller
// registers (--replace-svn-keywords, --retab-only, --no-indent-reformat).
type Transformer interface {
	Transform(path string, content []byte) ([]byte, error)
}

// TransformerFunc adapts a plain function to Transformer.
type TransformerFunc func(path string, content []byte) ([]byte, error)

func (f TransformerFunc) Transform(path string, content []byte) ([]byte, error) {
	return f(path, content)
}

// BlobStage hashes content and memoizes results so identical bytes never
// get rehashed. The memo is keyed by a fast xxh3 fingerprint of the raw
// bytes; a fingerprint hit returns the memoized sha directly, without
// running any Transformer or the Sink's hash again. Two different inputs
// with the same xxh3 fingerprint would share one sha: collisions are not
// checked for.
type BlobStage struct {
	sink         Sink
	sem          *semaphore.Weighted
	memo         cmap.ConcurrentMap[string, string] // xxh3 fingerprint (raw bytes) -> blob sha
	transformers []Transformer

	cache         *Sha1Map // optional cross-run --sha1-map cache
	formatSpecSha string
}

// NewBlobStage returns a BlobStage bounded to workers concurrent hashing
// goroutines.
func NewBlobStage(sink Sink, workers int64, transformers ...Transformer) *BlobStage {
	if workers <= 0 {
		workers = 8
	}
	return &BlobStage{
		sink:         sink,
		sem:          semaphore.NewWeighted(workers),
		memo:         cmap.New[string](),
		transformers: transformers,
	}
}

// Hash transforms content for path (running every registered
// Transformer in order) then hashes it via the Sink, reusing a memoized
// sha for byte-identical raw content.
func (b *BlobStage) Hash(ctx context.Context, path string, raw []byte) (sha string, err error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer b.sem.Release(1)

	fp := fingerprint(raw)
	if cached, ok := b.memo.Get(fp); ok {
		return cached, nil
	}

	var cacheKey string
	if b.cache != nil {
		cacheKey = Key("", path, sha1Hex(raw), b.formatSpecSha)
		if cached, ok := b.cache.Get(cacheKey); ok {
			b.memo.SetIfAbsent(fp, cached)
			return cached, nil
		}
	}

	transformed := raw
	for _, t := range b.transformers {
		transformed, err = t.Transform(path, transformed)
		if err != nil {
			return "", fmt.Errorf("objpipe: transform %s: %w", path, err)
		}
	}

	sha, err = b.sink.HashObject(transformed)
	if err != nil {
		return "", err
	}
	b.memo.SetIfAbsent(fp, sha)
	if b.cache != nil {
		b.cache.Put(cacheKey, sha)
	}
	return sha, nil
}

// WithCache attaches the cross-run --sha1-map cache: keys incorporate a
// hash of the transformer configuration so a changed format spec never
// reuses stale results.
func (b *BlobStage) WithCache(cache *Sha1Map, formatSpec string) *BlobStage {
	b.cache = cache
	b.formatSpecSha = sha1Hex([]byte(formatSpec))
	return b
}

func fingerprint(raw []byte) string {
	h := xxh3.Hash(raw)
	return hex.EncodeToString([]byte{
		byte(h >> 56), byte(h >> 48), byte(h >> 40), byte(h >> 32),
		byte(h >> 24), byte(h >> 16), byte(h >> 8), byte(h),
	})
}

// sha1Hex backs the --sha1-map cache key components and the Change-Id
// derivation, never blob identity itself, which the Sink owns.
func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
