package pathcache

import (
	"context"
	"time"

	"github.com/star/eclipse/internal/paths"
)

// Job is one in-flight or finished trace of an eclipse's path set.
type Job struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	set    *paths.Set
	err    error
}

// ID returns the eclipse id being traced.
func (j *Job) ID() string { return j.id }

// Done is closed when the trace finishes or is cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the trace error once Done is closed.
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// start returns the running trace for id or launches a new one.
func (c *Cache) start(id string) (*Job, error) {
	if c.ctx.Err() != nil {
		return nil, errClosed
	}
	c.mu.RLock()
	entry, cached := c.entries[id]
	c.mu.RUnlock()
	if cached {
		done := make(chan struct{})
		close(done)
		return &Job{id: id, cancel: func() {}, done: done, set: entry.Set}, nil
	}

	e, err := c.Engine(id)
	if err != nil {
		return nil, err
	}

	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	if job, ok := c.jobs[id]; ok {
		return job, nil
	}

	ctx, cancel := context.WithCancel(c.ctx)
	job := &Job{id: id, cancel: cancel, done: make(chan struct{})}
	c.jobs[id] = job

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		start := time.Now()
		set, err := c.trace(ctx, e)
		if err == nil {
			c.put(id, &Entry{Set: set, TracedAt: time.Now(), Duration: time.Since(start)})
		} else {
			c.logger.Warn("path trace failed", "eclipse", id, "error", err)
		}

		c.jobMu.Lock()
		delete(c.jobs, id)
		c.jobMu.Unlock()

		job.set, job.err = set, err
		close(job.done)
	}()
	return job, nil
}
