package fastimage

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fastimage/fastimage/cache"
	"github.com/fastimage/fastimage/cache/boltstore"
	"github.com/fastimage/fastimage/cache/disk"
	"github.com/fastimage/fastimage/dispatch"
)

const defaultPrefetchConcurrency = 4

// Client is the high-level image loader: HTTP download path, decode
// loader and disk cache behind one API.
//
// The cache layout under the root directory is:
//
//	root/images/   cache entries (sharded by key prefix)
//	root/stats.db  persisted scan bookkeeping
type Client struct {
	dir        string
	cache      *disk.Cache
	dl         *downloader
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger

	// owned collaborators, closed by Close; nil when injected
	loop  *dispatch.Loop
	store *boltstore.Store

	statsStore cache.StatsStore
	httpc      *http.Client

	maxBytes     int64
	lowWater     float64
	ttl          time.Duration
	scanInterval time.Duration
	prefetchN    int64
}

// New creates a client with its cache rooted at dir.
func New(dir string, opts ...Option) (*Client, error) {
	if dir == "" {
		return nil, errors.New("cache root dir is empty")
	}
	c := &Client{
		dir:          dir,
		httpc:        http.DefaultClient,
		maxBytes:     disk.DefaultMaxBytes,
		lowWater:     disk.DefaultLowWater,
		ttl:          disk.DefaultTTL,
		scanInterval: disk.DefaultScanInterval,
		prefetchN:    defaultPrefetchConcurrency,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, downloadDirPerm); err != nil {
		return nil, err
	}

	if c.statsStore == nil {
		store, err := boltstore.Open(filepath.Join(dir, "stats.db"))
		if err != nil {
			return nil, err
		}
		c.store = store
		c.statsStore = store
	}
	if c.dispatcher == nil {
		c.loop = dispatch.NewLoop()
		c.dispatcher = c.loop
	}

	diskCache, err := disk.New(
		filepath.Join(dir, "images"),
		&imageLoader{logger: c.logger},
		c.dispatcher,
		c.statsStore,
		disk.WithMaxBytes(c.maxBytes),
		disk.WithLowWater(c.lowWater),
		disk.WithTTL(c.ttl),
		disk.WithScanInterval(c.scanInterval),
		disk.WithLogger(c.logger),
	)
	if err != nil {
		c.shutdown()
		return nil, err
	}
	c.cache = diskCache
	c.dl = &downloader{httpc: c.httpc, cache: diskCache, logger: c.logger}
	return c, nil
}

// NewRequest builds the cache request for url under this client's cache
// directory.
func (c *Client) NewRequest(url string, spec Spec) *ImageRequest {
	return newRequest(filepath.Join(c.dir, "images"), url, spec)
}

// GetAsync looks up req in the disk cache. On a miss the callback runs
// synchronously with canceled=false and no image attached; the caller
// decides whether to fetch from origin (Get does exactly that). On a hit
// the decode runs on the cache's read worker and the callback is delivered
// through the completion dispatcher.
func (c *Client) GetAsync(req *ImageRequest, cb func(req *ImageRequest, canceled bool)) {
	c.cache.GetAsync(req, func(_ cache.Request, canceled bool) {
		cb(req, canceled)
	})
}

// Get loads url through the cache: a hit decodes from disk, a miss
// downloads the image first. It blocks until the image is decoded or the
// load fails.
func (c *Client) Get(ctx context.Context, url string, spec Spec) (image.Image, error) {
	req := c.NewRequest(url, spec)

	img, ok, err := c.lookup(req)
	if ok {
		return img, err
	}
	if err := c.dl.fetch(ctx, req); err != nil {
		return nil, err
	}
	img, ok, err = c.lookup(req)
	if !ok {
		return nil, ErrMissingAfterFetch
	}
	return img, err
}

// lookup runs one cache lookup and waits for its callback. ok=false means
// a miss.
func (c *Client) lookup(req *ImageRequest) (image.Image, bool, error) {
	done := make(chan bool, 1)
	c.cache.GetAsync(req, func(_ cache.Request, canceled bool) {
		done <- canceled
	})
	if canceled := <-done; canceled {
		return nil, true, ErrCanceled
	}
	if err := req.Err(); err != nil {
		return nil, true, err
	}
	if img := req.Image(); img != nil {
		return img, true, nil
	}
	return nil, false, nil
}

// Prefetch downloads the given URLs into the cache without decoding them,
// at most a few in flight at a time. Already-cached URLs are skipped. The
// first failure cancels the remaining downloads.
func (c *Client) Prefetch(ctx context.Context, urls []string, spec Spec) error {
	sem := semaphore.NewWeighted(c.prefetchN)
	g, ctx := errgroup.WithContext(ctx)
	for _, url := range urls {
		url := url
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return c.dl.fetch(ctx, c.NewRequest(url, spec))
		})
	}
	return g.Wait()
}

// Report returns the cache counters snapshot.
func (c *Client) Report() disk.Snapshot {
	return c.cache.Report()
}

// Clear schedules deletion of every cached entry.
func (c *Client) Clear() {
	c.cache.Clear()
}

// Close drains in-flight cache work and releases owned collaborators.
func (c *Client) Close() error {
	if c.cache != nil {
		c.cache.Sync()
	}
	return c.shutdown()
}

func (c *Client) shutdown() error {
	if c.loop != nil {
		_ = c.loop.Close()
		c.loop = nil
	}
	if c.store != nil {
		err := c.store.Close()
		c.store = nil
		return err
	}
	return nil
}
