// Package pool implements the deduplicating worker pool: at most one build
// per target per run, with a fixed budget of concurrently running actions.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

// TaskStatus represents the status of a target's build.
type TaskStatus string

const (
	// StatusUnknown means the target has never been submitted.
	StatusUnknown TaskStatus = "Unknown"
	// StatusRunning indicates the build is in flight.
	StatusRunning TaskStatus = "Running"
	// StatusCompleted indicates the build finished successfully.
	StatusCompleted TaskStatus = "Completed"
	// StatusFailed indicates the build finished with an error.
	StatusFailed TaskStatus = "Failed"
	// StatusCancelled indicates the build was aborted by a reset.
	StatusCancelled TaskStatus = "Cancelled"
)

// Thunk is the deferred build of one target. It runs user code, so it may
// fail or panic; the pool converts panics into errors.
type Thunk func(ctx context.Context) (domain.Artifact, error)

// Future is a shared handle on one target's build. Handles are cheap to
// copy around: every submitter of the same target gets the same Future.
type Future struct {
	done chan struct{}
	once sync.Once
	res  domain.BuildResult
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(res domain.BuildResult) {
	f.once.Do(func() {
		f.res = res
		close(f.done)
	})
}

// Done reports whether the build has completed.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the build result if the future has completed.
func (f *Future) Result() (domain.BuildResult, bool) {
	if !f.Done() {
		return domain.BuildResult{}, false
	}
	return f.res, true
}

// Wait blocks until the build completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (domain.Artifact, error) {
	select {
	case <-f.done:
		return f.res.Artifact, f.res.Err
	case <-ctx.Done():
		return domain.Artifact{}, zerr.Wrap(ctx.Err(), domain.ErrCancelled.Error())
	}
}

// Pool memoizes in-flight and completed builds per target and throttles
// running actions against a fixed worker budget. All table mutations go
// through one mutex; the semaphore is the only other shared primitive.
//
// The semaphore lives for the pool's whole lifetime, across resets: permits
// return naturally as abandoned runners exit, so the budget stays exact.
type Pool struct {
	parent  context.Context
	threads int
	sem     *semaphore.Weighted

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[domain.Target]*Future
	status  map[domain.Target]TaskStatus
}

// New creates a pool with the given worker budget. Builds run under a
// context derived from parent; Reset replaces that context.
func New(parent context.Context, threads int) *Pool {
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		parent:  parent,
		threads: threads,
		sem:     semaphore.NewWeighted(int64(threads)),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[domain.Target]*Future),
		status:  make(map[domain.Target]TaskStatus),
	}
}

// Threads returns the worker budget.
func (p *Pool) Threads() int { return p.threads }

// Submit requests that target be built by thunk. If the target was already
// submitted, the existing future is returned and thunk is not invoked.
func (p *Pool) Submit(target domain.Target, thunk Thunk) *Future {
	p.mu.Lock()
	if f, ok := p.entries[target]; ok {
		p.mu.Unlock()
		return f
	}
	f := newFuture()
	p.entries[target] = f
	p.status[target] = StatusRunning
	runCtx := p.ctx
	p.mu.Unlock()

	go p.runTask(runCtx, target, f, thunk)
	return f
}

func (p *Pool) runTask(ctx context.Context, target domain.Target, f *Future, thunk Thunk) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		res := domain.BuildResult{
			Err: zerr.With(domain.ErrCancelled, "target", target.String()),
		}
		p.finish(target, f, res, StatusCancelled)
		return
	}
	defer p.sem.Release(1)

	art, err := runThunk(ctx, thunk)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	p.finish(target, f, domain.BuildResult{Artifact: art, Err: err}, status)
}

// runThunk invokes user code, converting a panic into ErrActionFailed.
func runThunk(ctx context.Context, thunk Thunk) (art domain.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = zerr.With(domain.ErrActionFailed, "panic", fmt.Sprint(r))
		}
	}()
	return thunk(ctx)
}

func (p *Pool) finish(target domain.Target, f *Future, res domain.BuildResult, status TaskStatus) {
	// The status is written before the future completes, so a waiter that
	// wakes on the future already observes the final status.
	p.mu.Lock()
	// A runner from before a reset must not touch the fresh table.
	if p.entries[target] == f {
		p.status[target] = status
	}
	p.mu.Unlock()

	f.complete(res)
}

// ReleaseSlot gives up the caller's worker permit. The caller guarantees it
// holds one; Need uses this before waiting on dependencies.
func (p *Pool) ReleaseSlot() {
	p.sem.Release(1)
}

// AcquireSlot takes a worker permit back, waiting without bound. Permits
// always return as runners exit, so the wait terminates unless the
// dependency graph itself is cyclic.
func (p *Pool) AcquireSlot() {
	// Acquire with a background context cannot fail.
	_ = p.sem.Acquire(context.Background(), 1)
}

// Lookup returns the future for a target without mutating the table.
func (p *Pool) Lookup(target domain.Target) (*Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.entries[target]
	return f, ok
}

// Status returns the build status for a target.
func (p *Pool) Status(target domain.Target) TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.status[target]; ok {
		return s
	}
	return StatusUnknown
}

// Len returns the number of targets ever submitted since the last reset.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Reset cancels all pending futures and clears the table. The pool is
// usable again afterwards; nothing from the previous run is remembered.
func (p *Pool) Reset() {
	p.mu.Lock()
	cancel := p.cancel
	old := p.entries
	p.entries = make(map[domain.Target]*Future)
	p.status = make(map[domain.Target]TaskStatus)
	p.ctx, p.cancel = context.WithCancel(p.parent)
	p.mu.Unlock()

	cancel()
	for target, f := range old {
		f.complete(domain.BuildResult{
			Err: zerr.With(domain.ErrCancelled, "target", target.String()),
		})
	}
}
