// Package pathcache keeps the traced boundary curves of catalog eclipses in
// memory.
//
// Tracing a full path set takes seconds, so sets are traced once per
// eclipse and shared. A background loop warms the cache from the catalog
// and rebuilds it when a new catalog is loaded, serving the old sets until
// the new ones are ready. Select makes one eclipse the active one and
// cancels the trace of the previously selected eclipse if it is still
// running.
package pathcache

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/eclipse"
	"github.com/star/eclipse/internal/metrics"
	"github.com/star/eclipse/internal/paths"
)

// Config holds cache settings loaded from environment variables.
type Config struct {
	Warmup       bool          // trace every catalog eclipse at startup
	PollInterval time.Duration // catalog change detection interval (default: 30s)
}

// Entry is one traced path set.
type Entry struct {
	Set      *paths.Set
	TracedAt time.Time
	Duration time.Duration
}

type traceFunc func(ctx context.Context, e *eclipse.Engine) (*paths.Set, error)

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	engines map[string]*eclipse.Engine

	jobMu    sync.Mutex
	jobs     map[string]*Job
	selected *Job

	cfg       Config
	engineCfg *config.Config
	store     *catalog.Store
	trace     traceFunc
	logger    *slog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	// Catalog the entries were traced from.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	inCutover atomic.Bool
}

// New creates an empty Cache. Engines are built with engineCfg.
func New(cfg Config, engineCfg *config.Config, store *catalog.Store, logger *slog.Logger) *Cache {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	c := &Cache{
		entries:   make(map[string]*Entry),
		engines:   make(map[string]*eclipse.Engine),
		jobs:      make(map[string]*Job),
		cfg:       cfg,
		engineCfg: engineCfg,
		store:     store,
		logger:    logger,
		ctx:       ctx,
		stop:      stop,
	}
	c.trace = func(ctx context.Context, e *eclipse.Engine) (*paths.Set, error) {
		return e.TraceAll(ctx)
	}
	logger.Info("path cache initialized",
		"warmup", cfg.Warmup,
		"poll_interval_seconds", cfg.PollInterval.Seconds(),
	)
	return c
}

// Close cancels every running trace and waits for them to stop.
func (c *Cache) Close() {
	c.stop()
	c.wg.Wait()
}

// Engine returns the engine of a catalog eclipse, building it on first use.
func (c *Cache) Engine(id string) (*eclipse.Engine, error) {
	c.mu.RLock()
	e, ok := c.engines[id]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	rec, err := c.store.Lookup(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[id]; ok {
		return e, nil
	}
	e = eclipse.New(rec, c.engineCfg, c.logger)
	if entry, ok := c.entries[id]; ok {
		e.UseCurves(entry.Set)
	}
	c.engines[id] = e
	return e, nil
}

// Get returns the cached path set of id, or nil.
func (c *Cache) Get(id string) *paths.Set {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.PathCacheHit()
		return entry.Set
	}
	c.misses.Add(1)
	metrics.PathCacheMiss()
	return nil
}

// Paths returns the path set of id, tracing it if needed. A trace already
// running for id is joined rather than restarted. Cancelling ctx stops the
// wait but not the trace.
func (c *Cache) Paths(ctx context.Context, id string) (*paths.Set, error) {
	if set := c.Get(id); set != nil {
		return set, nil
	}
	job, err := c.start(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-job.Done():
	}
	if err := job.Err(); err != nil {
		return nil, err
	}
	return job.set, nil
}

// Select makes id the active eclipse and starts tracing it. If a
// different eclipse was selected and its trace is still running, that
// trace is cancelled.
func (c *Cache) Select(id string) (*Job, error) {
	job, err := c.start(id)
	if err != nil {
		return nil, err
	}

	c.jobMu.Lock()
	prev := c.selected
	c.selected = job
	c.jobMu.Unlock()

	if prev != nil && prev != job {
		select {
		case <-prev.Done():
		default:
			c.logger.Info("cancelling superseded trace", "eclipse", prev.id, "selected", id)
			prev.cancel()
		}
	}
	return job, nil
}

// put stores a traced set and installs it on the eclipse engine.
func (c *Cache) put(id string, entry *Entry) {
	c.mu.Lock()
	c.entries[id] = entry
	e := c.engines[id]
	n := len(c.entries)
	c.mu.Unlock()

	if e != nil {
		e.UseCurves(entry.Set)
	}
	metrics.SetPathCacheEntries(n)
}

// replaceAll swaps in a generation traced from the catalog fetched at
// fetchedAt and drops engines built from the previous catalog.
func (c *Cache) replaceAll(entries map[string]*Entry, fetchedAt time.Time) {
	c.mu.Lock()
	c.entries = entries
	c.engines = make(map[string]*eclipse.Engine)
	c.currentFetchedAt = fetchedAt
	c.mu.Unlock()
	metrics.SetPathCacheEntries(len(entries))
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries          int       `json:"entries"`
	Eclipses         []string  `json:"eclipses"`
	Hits             int64     `json:"hits"`
	Misses           int64     `json:"misses"`
	InFlight         int       `json:"in_flight"`
	Selected         string    `json:"selected,omitempty"`
	InCutover        bool      `json:"in_cutover"`
	CatalogFetchedAt time.Time `json:"catalog_fetched_at"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	s := Stats{
		Entries:          len(c.entries),
		CatalogFetchedAt: c.currentFetchedAt,
	}
	for id := range c.entries {
		s.Eclipses = append(s.Eclipses, id)
	}
	c.mu.RUnlock()
	slices.Sort(s.Eclipses)

	c.jobMu.Lock()
	s.InFlight = len(c.jobs)
	if c.selected != nil {
		s.Selected = c.selected.id
	}
	c.jobMu.Unlock()

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.InCutover = c.inCutover.Load()
	return s
}

var errClosed = errors.New("path cache closed")
