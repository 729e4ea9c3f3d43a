package fastimage

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastimage/fastimage/cache"
	"github.com/fastimage/fastimage/dispatch"
)

// Option configures a Client.
type Option func(*Client) error

// WithMaxCacheBytes sets the disk cache size limit.
func WithMaxCacheBytes(n int64) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.New("max cache bytes must be > 0")
		}
		c.maxBytes = n
		return nil
	}
}

// WithLowWater sets the fraction of the size limit a size-triggered scan
// reduces the cache to. Defaults to 0.8.
func WithLowWater(frac float64) Option {
	return func(c *Client) error {
		c.lowWater = frac
		return nil
	}
}

// WithTTL sets how long an unused entry stays cached. Defaults to 8 days.
func WithTTL(d time.Duration) Option {
	return func(c *Client) error {
		c.ttl = d
		return nil
	}
}

// WithScanInterval sets how often a maintenance scan runs even when the
// size limit has not been reached. Defaults to 3 days.
func WithScanInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.scanInterval = d
		return nil
	}
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) error {
		if httpc == nil {
			return errors.New("http client is nil")
		}
		c.httpc = httpc
		return nil
	}
}

// WithLogger sets a logger for the client and its cache.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDispatcher sets the completion dispatcher callbacks are delivered
// through. By default the client runs its own consumer goroutine
// ([dispatch.Loop]); UI hosts typically inject their main-loop dispatcher
// here.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(c *Client) error {
		if d == nil {
			return errors.New("dispatcher is nil")
		}
		c.dispatcher = d
		return nil
	}
}

// WithStatsStore sets a custom store for the persisted scan bookkeeping.
// By default a bolt database inside the cache root is used.
func WithStatsStore(store cache.StatsStore) Option {
	return func(c *Client) error {
		if store == nil {
			return errors.New("stats store is nil")
		}
		c.statsStore = store
		return nil
	}
}

// WithPrefetchConcurrency bounds the number of parallel Prefetch
// downloads. Defaults to 4.
func WithPrefetchConcurrency(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.New("prefetch concurrency must be > 0")
		}
		c.prefetchN = int64(n)
		return nil
	}
}
