package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/star/eclipse/internal/metrics"
)

// ErrEmptyCatalog is returned when a fetched document holds no valid
// eclipse.
var ErrEmptyCatalog = errors.New("catalog has no valid eclipses")

// Refresh fetches a new catalog, writes it to the disk cache and installs
// it in the store. The store lock serializes concurrent refreshes. cache
// may be nil.
func Refresh(ctx context.Context, f *Fetcher, cache *Cache, store *Store, logger *slog.Logger) (*Dataset, error) {
	store.Lock()
	defer store.Unlock()

	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	eclipses, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, err
	}
	if len(eclipses) == 0 {
		return nil, ErrEmptyCatalog
	}

	now := time.Now().UTC()
	if cache != nil {
		if err := cache.Save(eclipses, now); err != nil {
			logger.Warn("failed to write catalog cache", "error", err)
		}
	}

	ds := NewDataset(f.SourceURL(), now, eclipses)
	Install(store, ds)
	logger.Info("catalog refreshed", "source", ds.Source, "eclipses", len(ds.Eclipses))
	return ds, nil
}

// LoadCached installs the newest cached catalog, if any.
func LoadCached(cache *Cache, store *Store) (*Dataset, error) {
	eclipses, ts, err := cache.Load()
	if err != nil {
		return nil, err
	}
	ds := NewDataset("cache", ts, eclipses)
	Install(store, ds)
	return ds, nil
}

// Install sets ds as the current dataset and publishes its metrics.
func Install(store *Store, ds *Dataset) {
	store.Set(ds)
	metrics.SetCatalog(len(ds.Eclipses), ds.FetchedAt)
}
