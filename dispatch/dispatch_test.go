package dispatch

import (
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSyncRunsInline(t *testing.T) {
	t.Parallel()

	ran := false
	Sync().Post(func() { ran = true })
	if !ran {
		t.Fatal("Sync dispatcher did not run callback inline")
	}
}

func TestLoopDeliversInOrderOnOneGoroutine(t *testing.T) {
	t.Parallel()

	l := NewLoop()

	var mu sync.Mutex
	var got []int
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			seen[goroutineSignature()] = true
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d (FIFO order)", i, v, i)
		}
	}
	if len(seen) != 1 {
		t.Fatalf("callbacks ran on %d goroutines, want 1", len(seen))
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestLoopCloseDrains(t *testing.T) {
	t.Parallel()

	l := NewLoop()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 100; i++ {
		l.Post(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 100 {
		t.Fatalf("delivered %d callbacks before Close returned, want 100", count)
	}
}

func TestLoopPostAfterClose(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must not panic or block.
	done := make(chan struct{})
	go func() {
		l.Post(func() { t.Error("callback ran after Close") })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post after Close blocked")
	}
}

// goroutineSignature returns the "goroutine N" header of the calling
// goroutine's stack trace, enough to assert single-consumer delivery.
func goroutineSignature() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	header, _, _ := strings.Cut(string(buf[:n]), "[")
	return header
}
