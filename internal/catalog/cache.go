package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/star/satexplorer/internal/metrics"
)

// ErrNotReady is returned by Get when no snapshot exists and the read failed.
var ErrNotReady = errors.New("catalog not loaded")

const flightKey = "catalog"

// State is the coarse cache status observed by presentation.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// CacheConfig holds staleness and retry settings.
type CacheConfig struct {
	StaleTime      time.Duration // snapshot is fresh for this long; 0 revalidates on every read
	Retries        int           // retries after the first failed attempt; 0 disables
	RetryBaseDelay time.Duration // first backoff step, doubled per retry (default: 500ms)
	FetchTimeout   time.Duration // bound on one load including retries (default: 2m, see LoadBudget)
	SourceName     string        // recorded on snapshots
}

// Status describes the cache for loading/error rendering.
type Status struct {
	State        State     `json:"state"`
	Error        string    `json:"error,omitempty"`
	FetchedAt    time.Time `json:"fetched_at,omitzero"`
	Entries      int       `json:"entries"`
	Fresh        bool      `json:"fresh"`
	Revalidating bool      `json:"revalidating"`
}

// Cache wraps a Source with stale-while-revalidate semantics. Reads that
// find a snapshot never block on the network. Safe for concurrent use.
type Cache struct {
	source Source
	store  *Store
	config CacheConfig
	logger *slog.Logger
	now    func() time.Time

	group        singleflight.Group
	revalidating atomic.Bool
	invalidated  atomic.Bool
	inflight     atomic.Int32
	bg           sync.WaitGroup

	mu      sync.Mutex
	lastErr error
}

// NewCache creates a Cache over source. Zero config fields other than
// StaleTime and Retries take defaults.
func NewCache(source Source, store *Store, config CacheConfig, logger *slog.Logger) *Cache {
	if config.StaleTime < 0 {
		config.StaleTime = 5 * time.Minute
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 2 * time.Minute
	}
	if config.SourceName == "" {
		config.SourceName = "backend"
	}

	logger.Info("catalog cache initialized",
		"component", "catalog",
		"stale_time_seconds", config.StaleTime.Seconds(),
		"retries", config.Retries,
	)

	return &Cache{
		source: source,
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// LoadBudget is the time one load needs when every attempt runs to
// attemptTimeout: retries+1 attempts plus the doubling backoff between them,
// with a second of slack so the context does not cut the last attempt short.
func LoadBudget(attemptTimeout time.Duration, retries int, baseDelay time.Duration) time.Duration {
	const ceiling = 24 * time.Hour
	budget := time.Second
	delay := baseDelay
	for i := 0; i <= retries && budget < ceiling; i++ {
		budget += attemptTimeout
		if i < retries {
			budget += delay
			delay *= 2
		}
	}
	return min(budget, ceiling)
}

// Get returns the current catalog. The first call loads it. A fresh snapshot
// is returned as is. A stale one is returned immediately while one background
// revalidation runs.
func (c *Cache) Get(ctx context.Context) ([]Entry, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries, nil
}

// Snapshot is Get returning the whole snapshot.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.store.Get(); snap != nil {
		if c.fresh(snap) {
			metrics.IncCatalogRequests("fresh")
			return snap, nil
		}
		metrics.IncCatalogRequests("stale")
		c.revalidate()
		return snap, nil
	}

	metrics.IncCatalogRequests("miss")
	snap, err := c.loadShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return snap, nil
}

// Refresh forces a load and waits for it. With a previous snapshot in place,
// a failure leaves that snapshot current.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.loadShared(ctx)
	return err
}

// Invalidate marks the current snapshot stale; the next Get revalidates.
func (c *Cache) Invalidate() {
	c.invalidated.Store(true)
}

// Prefetch warms the cache in the background.
func (c *Cache) Prefetch(ctx context.Context) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.Snapshot(ctx); err != nil {
			c.logger.Warn("catalog prefetch failed", "component", "catalog", "error", err)
		}
	}()
}

// Status reports the current cache state.
func (c *Cache) Status() Status {
	c.mu.Lock()
	lastErr := c.lastErr
	c.mu.Unlock()

	st := Status{Revalidating: c.revalidating.Load()}
	if lastErr != nil {
		st.Error = lastErr.Error()
	}

	snap := c.store.Get()
	switch {
	case snap != nil:
		st.State = StateReady
		st.FetchedAt = snap.FetchedAt
		st.Entries = len(snap.Entries)
		st.Fresh = c.fresh(snap)
	case lastErr != nil && c.inflight.Load() == 0:
		st.State = StateError
	default:
		st.State = StateLoading
	}
	return st
}

// AgeSeconds returns the age of the current snapshot, or -1 without one.
func (c *Cache) AgeSeconds() float64 {
	return c.store.AgeSeconds()
}

// Ready reports whether a snapshot is available.
func (c *Cache) Ready() bool {
	return c.store.Get() != nil
}

func (c *Cache) fresh(snap *Snapshot) bool {
	return !c.invalidated.Load() && c.now().Sub(snap.FetchedAt) < c.config.StaleTime
}

// revalidate starts at most one background load.
func (c *Cache) revalidate() {
	if !c.revalidating.CompareAndSwap(false, true) {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer c.revalidating.Store(false)
		if _, err := c.loadShared(context.Background()); err != nil {
			c.logger.Warn("catalog revalidation failed, serving previous snapshot",
				"component", "catalog",
				"error", err,
			)
		}
	}()
}

// loadShared coalesces concurrent loads. The load itself is detached from
// the caller so one cancelled request does not fail the others.
func (c *Cache) loadShared(ctx context.Context) (*Snapshot, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.FetchTimeout)
		defer cancel()
		return c.load(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// load reads the source with bounded retries and installs the result.
func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	start := time.Now()
	backoff := retry.WithMaxRetries(uint64(c.config.Retries), retry.NewExponential(c.config.RetryBaseDelay))

	var attempts int
	var entries []Entry
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			metrics.IncCatalogRetries()
		}
		got, err := c.source.Fetch(ctx)
		if err != nil {
			metrics.IncCatalogFetches("error")
			c.logger.Debug("catalog fetch attempt failed",
				"component", "catalog",
				"attempt", attempts,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		metrics.IncCatalogFetches("success")
		entries = got
		return nil
	})

	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("catalog load failed",
			"component", "catalog",
			"attempts", attempts,
			"error", err,
		)
		return nil, fmt.Errorf("loading catalog after %d attempts: %w", attempts, err)
	}

	snap := NewSnapshot(c.config.SourceName, c.now(), entries, c.logger)
	c.store.Set(snap)
	c.invalidated.Store(false)
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()

	metrics.SetCatalogEntries(len(snap.Entries))
	metrics.ObserveCatalogLoadDuration(time.Since(start))
	c.logger.Info("catalog loaded",
		"component", "catalog",
		"entries", len(snap.Entries),
		"attempts", attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}
