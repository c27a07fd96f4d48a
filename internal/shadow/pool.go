package shadow

import (
	"context"
	"log/slog"
	"sync"
)

// rowJob is a unit of work for the pool.
type rowJob struct {
	index int
	lat   float64
}

// rowResult is the boundary points found on one grid row.
type rowResult struct {
	index    int
	entering []rowPoint
	leaving  []rowPoint
}

type rowPoint struct{ lat, lon float64 }

// WorkerPool scans grid rows on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a pool with the given number of workers (at least one).
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// ScanRows runs scan for every latitude and returns the results in row
// order. When ctx is cancelled the rows not yet scanned are dropped and
// ctx.Err() is returned.
func (wp *WorkerPool) ScanRows(ctx context.Context, lats []float64, scan func(lat float64) rowResult) ([]rowResult, error) {
	if len(lats) == 0 {
		return nil, ctx.Err()
	}

	jobs := make(chan rowJob, wp.workers*2)
	results := make(chan rowResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := scan(job.lat)
				res.index = job.index
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, lat := range lats {
			select {
			case jobs <- rowJob{index: i, lat: lat}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	rows := make([]rowResult, len(lats))
	done := 0
	for res := range results {
		rows[res.index] = res
		done++
	}

	if err := ctx.Err(); err != nil {
		wp.logger.Debug("row scan cancelled", "rows_done", done, "rows_total", len(lats))
		return nil, err
	}
	return rows, nil
}
