package disk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastimage/fastimage/cache"
)

func entryNames(t *testing.T, dir string) map[string]bool {
	t.Helper()
	names := make(map[string]bool)
	dirents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, d := range dirents {
		names[d.Name()] = true
	}
	return names
}

func TestScanDeletesExpiredEntriesOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, _ := newTestCache(t, dir, newMemStore(), WithTTL(time.Hour))

	now := time.Now()
	writeEntry(t, dir, "stale1", 10, now.Add(-2*time.Hour))
	writeEntry(t, dir, "stale2", 10, now.Add(-90*time.Minute))
	writeEntry(t, dir, "fresh1", 10, now.Add(-time.Minute))
	writeEntry(t, dir, "fresh2", 10, now)

	c.scan()

	names := entryNames(t, dir)
	if names["stale1"] || names["stale2"] {
		t.Fatalf("expired entries survived the scan: %v", names)
	}
	if !names["fresh1"] || !names["fresh2"] {
		t.Fatalf("fresh entries were deleted: %v", names)
	}
	if s := c.Report(); s.SizeBytes != 20 {
		t.Fatalf("SizeBytes = %d after TTL scan, want 20", s.SizeBytes)
	}
}

func TestScanEvictsOldestUntilLowWater(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, _ := newTestCache(t, dir, newMemStore(), WithMaxBytes(1000))

	// Five 300-byte entries, f1 oldest. Total 1500 > 1000; the scan must
	// delete f1 (1200), f2 (900), f3 (600 <= 800, stop) and keep f4, f5.
	now := time.Now()
	for i, name := range []string{"f1", "f2", "f3", "f4", "f5"} {
		writeEntry(t, dir, name, 300, now.Add(time.Duration(i-10)*time.Minute))
	}

	c.scan()

	names := entryNames(t, dir)
	for _, deleted := range []string{"f1", "f2", "f3"} {
		if names[deleted] {
			t.Fatalf("%s survived eviction, surviving entries: %v", deleted, names)
		}
	}
	for _, kept := range []string{"f4", "f5"} {
		if !names[kept] {
			t.Fatalf("%s was evicted, surviving entries: %v", kept, names)
		}
	}
	if s := c.Report(); s.SizeBytes != 600 {
		t.Fatalf("SizeBytes = %d after eviction, want 600", s.SizeBytes)
	}
}

func TestScanNoOpWhenNotDue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, _ := newTestCache(t, dir, newMemStore(), WithMaxBytes(1000))

	writeEntry(t, dir, "keep", 100, time.Now().Add(-30*24*time.Hour))

	// Fresh scan on record and size under the limit: the pass must return
	// before touching the directory, even though the entry is TTL-expired.
	lastScan := time.Now().UnixMilli()
	c.lastScan.Store(lastScan)
	c.bytes.Store(100)

	c.scan()

	if !entryNames(t, dir)["keep"] {
		t.Fatal("no-op scan deleted an entry")
	}
	if got := c.lastScan.Load(); got != lastScan {
		t.Fatalf("no-op scan updated lastScan: %d -> %d", lastScan, got)
	}
	if got := c.bytes.Load(); got != 100 {
		t.Fatalf("no-op scan updated size: %d", got)
	}
}

func TestScanPersistsState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newMemStore()
	c, _ := newTestCache(t, dir, store)
	writeEntry(t, dir, "a", 123, time.Now())

	c.scan()

	wantScan := c.lastScan.Load()
	if v, ok := store.GetInt64(cache.StatsLastScanKey); !ok || v != wantScan {
		t.Fatalf("persisted last scan = %d (present=%v), want %d", v, ok, wantScan)
	}
	if v, ok := store.GetInt64(cache.StatsSizeKey); !ok || v != 123 {
		t.Fatalf("persisted size = %d (present=%v), want 123", v, ok)
	}

	// Simulated restart: a new cache over the same store resumes the
	// persisted state instead of starting from zero.
	c2, _ := newTestCache(t, dir, store)
	if got := c2.lastScan.Load(); got != wantScan {
		t.Fatalf("restarted lastScan = %d, want %d", got, wantScan)
	}
	if got := c2.bytes.Load(); got != 123 {
		t.Fatalf("restarted size = %d, want 123", got)
	}
	if c2.scanDue(time.Now()) {
		t.Fatal("scan due right after warm start with fresh, small persisted state")
	}
}

func TestWarmStartOversizedTriggersScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newMemStore()
	if err := store.SetInt64(cache.StatsLastScanKey, time.Now().UnixMilli()); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInt64(cache.StatsSizeKey, 5000); err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCache(t, dir, store, WithMaxBytes(1000))
	if !c.scanDue(time.Now()) {
		t.Fatal("scan not due although persisted size exceeds the limit")
	}
}

func TestScanCountsUndeletableEntry(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions do not bind for root")
	}
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "ro")
	if err := os.Mkdir(sub, 0o700); err != nil {
		t.Fatal(err)
	}
	c, _ := newTestCache(t, dir, newMemStore(), WithTTL(time.Hour))

	old := time.Now().Add(-2 * time.Hour)
	writeEntry(t, dir, filepath.Join("ro", "pinned"), 40, old)
	writeEntry(t, dir, "stale", 10, old)

	// Read-only parent makes the nested entry undeletable.
	if err := os.Chmod(sub, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(sub, 0o700) })

	c.scan()

	if _, err := os.Stat(filepath.Join(sub, "pinned")); err != nil {
		t.Fatalf("undeletable entry missing: %v", err)
	}
	if entryNames(t, dir)["stale"] {
		t.Fatal("deletable expired entry survived")
	}
	// The failed delete stays counted against the cache size.
	if s := c.Report(); s.SizeBytes != 40 {
		t.Fatalf("SizeBytes = %d, want 40 (undeletable entry counted)", s.SizeBytes)
	}
}
