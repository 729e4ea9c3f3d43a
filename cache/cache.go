// Package cache defines the contracts between the disk cache core and its
// collaborators: the lookup request, the loader that materializes cached
// bytes, and the store that persists scan bookkeeping across restarts.
//
// The cache itself lives in the disk subpackage. Keeping the contracts in a
// parent package lets callers depend on the interfaces without pulling in a
// concrete implementation.
package cache

// Stats store keys for the scan bookkeeping persisted across restarts.
const (
	// StatsLastScanKey holds the epoch millis of the last completed scan.
	StatsLastScanKey = "diskcache_last_scan"

	// StatsSizeKey holds the tracked total cache size in bytes.
	StatsSizeKey = "diskcache_size"
)

// Request identifies one cached entry during an async lookup.
//
// The key-to-path derivation is owned by the caller; the cache only ever
// stats, reads and deletes the file at Path.
type Request interface {
	// Key returns the stable cache key for this request.
	Key() string

	// Path returns the absolute path of the entry under the cache root.
	Path() string

	// Valid reports whether the result is still wanted. It is re-checked
	// on the read worker just before the expensive load.
	Valid() bool
}

// GetCallback receives the result of an async lookup. It is invoked exactly
// once per GetAsync call. canceled is true only when the request failed its
// validity re-check on the read worker; a plain miss is not a cancellation.
type GetCallback func(req Request, canceled bool)

// Loader materializes a cached file into an in-memory object.
//
// Load runs synchronously on the read worker. Failures are the loader's
// concern: they must be recorded on the request (or logged), never panic.
type Loader interface {
	Load(req Request)
}

// StatsStore persists the two scan bookkeeping scalars across restarts.
//
// Implementations must be safe for concurrent use.
type StatsStore interface {
	// GetInt64 returns the stored value for key, or ok=false if absent
	// (or unreadable; a missing value only costs an extra scan).
	GetInt64(key string) (int64, bool)

	// SetInt64 stores the value for key.
	SetInt64(key string, v int64) error
}
