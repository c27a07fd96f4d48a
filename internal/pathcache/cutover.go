package pathcache

import (
	"context"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/eclipse"
)

// Start runs the maintenance loop: it waits for a catalog, optionally warms
// the cache, then polls for catalog changes and rebuilds on each one.
// Blocks until ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	if !c.waitForCatalog(ctx) {
		return
	}
	if ds := c.store.Get(); ds != nil {
		c.mu.Lock()
		c.currentFetchedAt = ds.FetchedAt
		c.mu.Unlock()
		if c.cfg.Warmup {
			c.warmup(ctx, ds)
		}
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("path cache stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForCatalog blocks until the store holds a dataset, checking every
// second. Returns false if ctx is cancelled.
func (c *Cache) waitForCatalog(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("path cache waiting for catalog")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				return true
			}
		}
	}
}

// warmup traces every eclipse of ds in catalog order.
func (c *Cache) warmup(ctx context.Context, ds *catalog.Dataset) {
	c.logger.Info("path cache warmup starting", "eclipses", len(ds.Eclipses))
	start := time.Now()
	traced := 0

	for _, id := range ds.IDs() {
		job, err := c.start(id)
		if err != nil {
			c.logger.Warn("warmup trace not started", "eclipse", id, "error", err)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-job.Done():
		}
		if job.Err() == nil {
			traced++
		}
	}

	c.logger.Info("path cache warmup complete",
		"traced", traced,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (c *Cache) catalogChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !ds.FetchedAt.Equal(c.currentFetchedAt)
}

// tick runs one iteration of the maintenance loop.
func (c *Cache) tick(ctx context.Context) {
	if c.catalogChanged() {
		c.performCutover(ctx)
	}
}

// performCutover retraces every eclipse of the new catalog into a fresh
// generation and swaps it in. Reads keep hitting the old generation until
// the swap. Cancellation leaves the old generation in place.
func (c *Cache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.mu.RLock()
	old := c.currentFetchedAt
	c.mu.RUnlock()
	c.logger.Info("catalog cutover starting",
		"old_catalog_fetched_at", old.UTC().Format(time.RFC3339),
		"new_catalog_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.inCutover.Store(true)
	defer c.inCutover.Store(false)

	start := time.Now()
	next := make(map[string]*Entry, len(ds.Eclipses))
	for _, rec := range ds.Eclipses {
		if ctx.Err() != nil {
			c.logger.Warn("cutover cancelled by context")
			return
		}
		began := time.Now()
		set, err := c.trace(ctx, eclipse.New(rec, c.engineCfg, c.logger))
		if err != nil {
			c.logger.Warn("cutover trace failed", "eclipse", rec.ID, "error", err)
			continue
		}
		next[rec.ID] = &Entry{Set: set, TracedAt: time.Now(), Duration: time.Since(began)}
	}

	c.replaceAll(next, ds.FetchedAt)

	c.logger.Info("catalog cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"entries_replaced", len(next),
	)
}
