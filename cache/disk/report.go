package disk

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is a point-in-time view of the cache counters. Pure read, no
// side effects.
type Snapshot struct {
	Lookups   int64
	Hits      int64
	Misses    int64
	SizeBytes int64
	LastScan  time.Time // zero if no scan has completed this lifetime
}

// Report returns the current counters.
func (c *Cache) Report() Snapshot {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Snapshot{
		Lookups:   hits + misses,
		Hits:      hits,
		Misses:    misses,
		SizeBytes: c.bytes.Load(),
	}
	if ms := c.lastScan.Load(); ms > 0 {
		s.LastScan = time.UnixMilli(ms)
	}
	return s
}

// String renders the human-readable report.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Disk Cache: %s\n", humanize.Comma(s.Lookups))
	fmt.Fprintf(&b, "Cache Hit: %s\n", humanize.Comma(s.Hits))
	fmt.Fprintf(&b, "Cache Miss: %s\n", humanize.Comma(s.Misses))
	if s.LastScan.IsZero() {
		b.WriteString("Not scanned")
		return b.String()
	}
	fmt.Fprintf(&b, "Size: %sK\n", humanize.Comma(s.SizeBytes/1024))
	fmt.Fprintf(&b, "Since Last Scan: %s Minutes", humanize.Comma(int64(time.Since(s.LastScan).Minutes())))
	return b.String()
}
