// Package fastimage loads remote images through a disk-resident cache
// bounded by total size and time-to-live.
//
// The high-level [Client] ties together the pieces: an HTTP download path
// that writes entries into the cache directory, a decode loader that turns
// cached bytes into an [image.Image], and the disk cache core in
// cache/disk that serves lookups and evicts in the background.
//
// # Quick Start
//
//	c, err := fastimage.New("/var/cache/myapp/images")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	img, err := c.Get(ctx, "https://example.com/photo.jpg", fastimage.SpecOriginal)
//
// Warm the cache without decoding:
//
//	err = c.Prefetch(ctx, urls, fastimage.SpecOriginal)
//
// # Eviction
//
// Entries are plain files under the cache directory. A background scan,
// triggered by writes, deletes entries unused for longer than the TTL and,
// if the cache is still over its size limit, the least recently used
// entries until it reaches the low-water mark. Scan bookkeeping is
// persisted (see cache/boltstore) so restarts do not force a full scan.
package fastimage
