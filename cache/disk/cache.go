// Package disk provides a disk-resident image cache bounded by total size
// and entry age.
//
// The cache owns one root directory. A file's presence under that root is
// the sole source of truth for "is this key cached"; no per-key index is
// kept in memory. Lookups are served through a capacity-1 read worker,
// maintenance scans through an independent capacity-1 scan worker, so a
// long scan never blocks in-flight reads.
package disk

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/fastimage/fastimage/cache"
	"github.com/fastimage/fastimage/dispatch"
	"github.com/fastimage/fastimage/internal/workqueue"
)

// Policy defaults.
const (
	DefaultMaxBytes     int64 = 50 << 20 // 50 MiB
	DefaultLowWater           = 0.8
	DefaultTTL                = 8 * 24 * time.Hour
	DefaultScanInterval       = 3 * 24 * time.Hour
)

// Idle release timeouts for the on-demand workers.
const (
	readIdleTimeout = 60 * time.Second
	scanIdleTimeout = 10 * time.Second

	defaultDirPerm os.FileMode = 0o700
)

// Cache is the disk cache core. It lists, stats and deletes files under its
// root; it never creates them: entries are written by an external write
// path which reports them via Added.
//
// All methods are safe for concurrent use.
type Cache struct {
	dir        string
	loader     cache.Loader
	dispatcher dispatch.Dispatcher
	store      cache.StatsStore
	logger     *slog.Logger

	maxBytes     int64
	lowWaterFrac float64
	lowWater     int64 // derived: maxBytes * lowWaterFrac
	ttl          time.Duration
	scanInterval time.Duration

	reads *workqueue.Queue
	scans *workqueue.Queue

	lastScan atomic.Int64 // epoch millis of last completed scan, 0 = never
	bytes    atomic.Int64 // size estimate; authoritative only right after a scan
	hits     atomic.Int64
	misses   atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxBytes sets the maximum cache size in bytes.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithLowWater sets the fraction of the maximum size a size-triggered scan
// reduces the cache to. Defaults to 0.8.
func WithLowWater(frac float64) Option {
	return func(c *Cache) {
		c.lowWaterFrac = frac
	}
}

// WithTTL sets how long an entry may go unused before the next scan deletes
// it regardless of size pressure.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

// WithScanInterval sets how stale the last scan may be before a write
// notification triggers a new one.
func WithScanInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.scanInterval = d
	}
}

// WithLogger sets a logger. If nil, logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache rooted at dir.
//
// Persisted scan state is loaded synchronously, before any Added call is
// possible, so a restart does not force a full scan unless the persisted
// size or age already trips the trigger.
func New(dir string, loader cache.Loader, dispatcher dispatch.Dispatcher, store cache.StatsStore, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	if loader == nil {
		return nil, errors.New("loader is nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is nil")
	}
	if store == nil {
		return nil, errors.New("stats store is nil")
	}

	c := &Cache{
		dir:          dir,
		loader:       loader,
		dispatcher:   dispatcher,
		store:        store,
		maxBytes:     DefaultMaxBytes,
		lowWaterFrac: DefaultLowWater,
		ttl:          DefaultTTL,
		scanInterval: DefaultScanInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxBytes <= 0 {
		return nil, errors.New("max bytes must be > 0")
	}
	if c.lowWaterFrac <= 0 || c.lowWaterFrac > 1 {
		return nil, errors.New("low water fraction must be in (0, 1]")
	}
	if c.ttl <= 0 {
		return nil, errors.New("ttl must be > 0")
	}
	if c.scanInterval <= 0 {
		return nil, errors.New("scan interval must be > 0")
	}
	c.lowWater = int64(float64(c.maxBytes) * c.lowWaterFrac)

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, err
	}

	c.reads = workqueue.New(readIdleTimeout)
	c.scans = workqueue.New(scanIdleTimeout)

	if v, ok := store.GetInt64(cache.StatsLastScanKey); ok {
		c.lastScan.Store(v)
	}
	if v, ok := store.GetInt64(cache.StatsSizeKey); ok {
		c.bytes.Store(v)
	}
	return c, nil
}

// GetAsync looks up the entry for req.
//
// On a miss the callback runs synchronously on the calling goroutine with
// canceled=false: no cached data, the caller should fetch from origin. On a
// hit the load is scheduled on the read worker: the request's validity is
// re-checked there, the loader materializes the entry if still wanted, and
// the callback is delivered through the completion dispatcher. The existence
// check is the only I/O performed on the calling goroutine.
func (c *Cache) GetAsync(req cache.Request, cb cache.GetCallback) {
	if _, err := os.Stat(req.Path()); err != nil {
		c.misses.Add(1)
		cb(req, false)
		return
	}
	c.hits.Add(1)
	c.reads.Submit(func() {
		canceled := true
		if req.Valid() {
			canceled = false
			c.loader.Load(req)
		}
		c.dispatcher.Post(func() { cb(req, canceled) })
	})
}

// Added records that an entry of the given size was just written under the
// cache root, and schedules a maintenance scan when one is due: never
// scanned, last scan older than the scan interval, or size estimate over
// the maximum. Redundant submissions are tolerated; the scan re-checks the
// trigger, so queued duplicates collapse into cheap no-ops.
func (c *Cache) Added(size int64) {
	if size > 0 {
		c.bytes.Add(size)
	}
	if c.scanDue(time.Now()) {
		c.scans.Submit(c.scan)
	}
}

// Clear deletes every entry under the cache root, best-effort per file, then
// resets and persists the scan state. It runs on the read worker, mutually
// exclusive with in-flight reads but not with a concurrently running scan;
// the worst outcome of that race is a transient size overshoot corrected by
// the next scan.
func (c *Cache) Clear() {
	c.reads.Submit(func() {
		entries, _, err := c.listEntries()
		if err != nil {
			c.log().Error("cache clear failed", "dir", c.dir, "error", err)
			return
		}
		for _, e := range entries {
			if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.log().Warn("failed to delete cached entry", "path", e.path, "error", err)
			}
		}
		c.bytes.Store(0)
		c.lastScan.Store(time.Now().UnixMilli())
		c.saveStats()
	})
}

// Sync blocks until all queued reads and scans have finished. Intended for
// shutdown and tests.
func (c *Cache) Sync() {
	c.reads.Wait()
	c.scans.Wait()
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// saveStats persists the scan bookkeeping. Persistence is advisory: a write
// failure only costs an extra scan after the next restart.
func (c *Cache) saveStats() {
	if err := c.store.SetInt64(cache.StatsLastScanKey, c.lastScan.Load()); err != nil {
		c.log().Warn("failed to persist last scan time", "error", err)
	}
	if err := c.store.SetInt64(cache.StatsSizeKey, c.bytes.Load()); err != nil {
		c.log().Warn("failed to persist cache size", "error", err)
	}
}
