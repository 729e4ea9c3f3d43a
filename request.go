package fastimage

import (
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
)

// shardPrefixLen is the number of key characters used as a subdirectory
// prefix, keeping any single cache directory from growing unbounded.
const shardPrefixLen = 2

// ImageRequest identifies one image load: a URL plus a load spec. It is
// the cache.Request handed to the disk cache, and it carries the decode
// result once the loader has run.
//
// A request is safe for concurrent use; Cancel may be called from any
// goroutine while the load is in flight.
type ImageRequest struct {
	url  string
	spec Spec
	key  string
	path string

	canceled atomic.Bool

	mu  sync.Mutex
	img image.Image
	err error
}

// newRequest derives the cache key and on-disk path for url under dir.
func newRequest(dir, url string, spec Spec) *ImageRequest {
	key := digest.FromString(url + "|" + spec.Name).Encoded()
	return &ImageRequest{
		url:  url,
		spec: spec,
		key:  key,
		path: filepath.Join(dir, key[:shardPrefixLen], key),
	}
}

// URL returns the origin URL.
func (r *ImageRequest) URL() string { return r.url }

// Spec returns the load spec.
func (r *ImageRequest) Spec() Spec { return r.spec }

// Key returns the stable cache key.
func (r *ImageRequest) Key() string { return r.key }

// Path returns the absolute path of the cache entry.
func (r *ImageRequest) Path() string { return r.path }

// Valid reports whether the result is still wanted.
func (r *ImageRequest) Valid() bool { return !r.canceled.Load() }

// Cancel marks the request as no longer wanted. An in-flight load completes
// with canceled=true and skips the decode if it has not started yet.
func (r *ImageRequest) Cancel() { r.canceled.Store(true) }

// Image returns the decoded image, or nil if the load has not completed
// or failed.
func (r *ImageRequest) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.img
}

// Err returns the load failure, if any.
func (r *ImageRequest) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *ImageRequest) setResult(img image.Image, err error) {
	r.mu.Lock()
	r.img = img
	r.err = err
	r.mu.Unlock()
}
