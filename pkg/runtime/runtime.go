// Package runtime is the execution substrate the snapshot/clone engine and
// the nexus child state machine run on. It stands in for the engine's
// cooperative, single-threaded "primary reactor": a Reactor that runs every
// submitted task, including every mutating Facade call, on one goroutine,
// and a Bridge whose SpawnBlocking runs blocking calls on the caller's
// goroutine, admitting only a fixed number of them at a time. There is no
// separate worker-goroutine pool: Spawn and SpawnAwait both run their task
// on the reactor goroutine.
package runtime

import (
	"context"

	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
)

const (
	// defaultWorkerThreads is the reactor's task-queue buffer size; the
	// value mirrors the reference runtime's four worker threads.
	defaultWorkerThreads = 4

	// defaultBlockingThreads mirrors the reference runtime's blocking-task
	// pool, sized larger than the reactor pool since blocking calls (disk
	// I/O, xattr syncs) spend most of their time waiting rather than
	// running.
	defaultBlockingThreads = 6
)

// Bridge is the Go analogue of the reference engine's process-wide Runtime:
// a Reactor for cooperative, non-blocking work plus a semaphore-bounded pool
// for calls that must block. Unlike a tokio runtime, a Bridge owns no
// thread pool: Spawn and SpawnAwait run on the single reactor goroutine,
// SpawnBlocking runs on the caller's goroutine, and the semaphore stands in
// for the fixed blocking-thread count.
type Bridge struct {
	reactor  *Reactor
	blocking *semaphore.Weighted
}

// New returns a Bridge with the reference runtime's default pool sizes.
func New() *Bridge {
	return NewSized(defaultWorkerThreads, defaultBlockingThreads)
}

// NewSized returns a Bridge whose reactor buffers workerThreads pending
// tasks and whose blocking pool admits at most blockingThreads concurrent
// callers.
func NewSized(workerThreads, blockingThreads int) *Bridge {
	return &Bridge{
		reactor:  newReactor(workerThreads),
		blocking: semaphore.NewWeighted(int64(blockingThreads)),
	}
}

// Spawn schedules fn to run on the primary reactor goroutine and returns
// immediately without waiting for it to complete. Every Facade mutation
// must go through Spawn (or SpawnAwait) rather than running inline, so that
// concurrent callers never interleave on the blobstore.
func (b *Bridge) Spawn(fn func(ctx context.Context)) {
	b.reactor.submit(fn)
}

// SpawnAwait schedules fn on the reactor and blocks the calling goroutine
// until it completes, returning fn's error. This is the Go equivalent of
// the reference runtime's spawn + oneshot-channel await pattern, collapsed
// into a single call since Go callers can simply block on a channel without
// needing a separate future type.
func (b *Bridge) SpawnAwait(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	b.reactor.submit(func(rctx context.Context) {
		done <- fn(rctx)
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SpawnBlocking runs fn on the calling goroutine once the semaphore that
// models the reference runtime's max_blocking_threads admits it, and
// returns fn's error. It blocks until a slot is free and fn returns.
func (b *Bridge) SpawnBlocking(ctx context.Context, fn func() error) error {
	if err := b.blocking.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.blocking.Release(1)

	return fn()
}

// BlockOn is the Go equivalent of the reference runtime's block_on: it runs
// fn to completion on the calling goroutine, bypassing the reactor
// entirely. Used at process start-up and in tests, never from within a
// reactor-scheduled task.
func BlockOn(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Close stops accepting new reactor work. Pending tasks already submitted
// are drained before Close returns.
func (b *Bridge) Close() {
	b.reactor.stop()
}

// Reactor is a single-threaded cooperative task loop: every function
// submitted to it runs to completion before the next one starts, modeling
// the reference engine's assumption that blobstore and nexus mutations
// never run concurrently with each other.
type Reactor struct {
	tasks chan func(ctx context.Context)
	done  chan struct{}
}

func newReactor(buffer int) *Reactor {
	r := &Reactor{
		tasks: make(chan func(ctx context.Context), buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reactor) run() {
	ctx := context.Background()
	for fn := range r.tasks {
		fn(ctx)
	}
	close(r.done)
}

func (r *Reactor) submit(fn func(ctx context.Context)) {
	defer func() {
		if recover() != nil {
			klog.Warningf("runtime: submit to closed reactor dropped")
		}
	}()
	r.tasks <- fn
}

func (r *Reactor) stop() {
	close(r.tasks)
	<-r.done
}
