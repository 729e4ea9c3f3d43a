package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// cacheEntry is one regular file observed under the cache root.
type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// scanDue reports whether a maintenance scan should run: never scanned,
// last scan older than the interval, or size estimate over the maximum.
// lastScan and bytes are read atomically but not as a pair; the worst a
// racing reader gets is one redundant scan.
func (c *Cache) scanDue(now time.Time) bool {
	last := c.lastScan.Load()
	if last <= 0 {
		return true
	}
	if now.UnixMilli()-last > c.scanInterval.Milliseconds() {
		return true
	}
	return c.bytes.Load() > c.maxBytes
}

// scan is the maintenance pass. It runs only on the scan worker.
//
// One directory walk collects every entry. Entries past their TTL are
// deleted first; if the survivors still exceed the maximum size they are
// deleted oldest-first until the total drops to the low-water mark. State
// is persisted only after a completed pass, so an aborted scan never
// records partial results.
func (c *Cache) scan() {
	now := time.Now()
	if !c.scanDue(now) {
		return
	}
	start := time.Now()

	entries, totalBefore, err := c.listEntries()
	if err != nil {
		c.log().Error("cache scan failed", "dir", c.dir, "error", err)
		return
	}

	var totalSize int64
	var expired, evicted int
	survivors := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		if now.Sub(e.modTime) > c.ttl {
			switch err := os.Remove(e.path); {
			case err == nil, errors.Is(err, os.ErrNotExist):
				expired++
				continue
			default:
				// Keep it counted; the next scan will see it again.
				c.log().Warn("failed to delete expired entry", "path", e.path, "error", err)
			}
		}
		totalSize += e.size
		survivors = append(survivors, e)
	}

	if totalSize > c.maxBytes {
		sort.Slice(survivors, func(i, j int) bool {
			if survivors[i].modTime.Equal(survivors[j].modTime) {
				return survivors[i].path < survivors[j].path
			}
			return survivors[i].modTime.Before(survivors[j].modTime)
		})
		for _, e := range survivors {
			if totalSize <= c.lowWater {
				break
			}
			if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.log().Warn("failed to evict entry", "path", e.path, "error", err)
				continue
			}
			totalSize -= e.size
			evicted++
		}
	}

	c.lastScan.Store(now.UnixMilli())
	c.bytes.Store(totalSize)
	c.saveStats()

	c.log().Info("cache scan complete",
		"entries", len(entries),
		"bytes_before", totalBefore,
		"bytes_after", totalSize,
		"expired", expired,
		"evicted", evicted,
		"elapsed", time.Since(start))
}

// listEntries walks the cache root once, returning every regular file and
// the sum of their sizes. Files that vanish mid-walk are skipped.
func (c *Cache) listEntries() ([]cacheEntry, int64, error) {
	var entries []cacheEntry
	var total int64
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		entries = append(entries, cacheEntry{
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
