package tasks

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/shared"
	"golang.org/x/time/rate"
)

// Handler processes one job on a pool worker and returns exactly one result.
type Handler[J, R any] func(ctx context.Context, job J) R

// PoolOpts configure a [Pool].
type PoolOpts struct {
	Workers   int     // Concurrent workers. Zero runs each job inline on Submit.
	QueueSize int     // Pending jobs before Submit blocks (default: Workers)
	RateLimit float64 // Jobs started per second. Zero is unlimited.
	Logger    *log.Logger
}

// Pool runs a [Handler] on a fixed set of worker goroutines.
//
// Jobs and results only cross goroutines through channels; a handler never shares state with its caller.
type Pool[J, R any] struct {
	handler Handler[J, R]
	jobs    chan envelope[J, R]
	limiter *rate.Limiter
	logger  *log.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type envelope[J, R any] struct {
	ctx    context.Context
	job    J
	future *Future[R]
}

// NewPool starts opts.Workers workers running h.
func NewPool[J, R any](opts PoolOpts, h Handler[J, R]) *Pool[J, R] {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	p := &Pool[J, R]{
		handler: h,
		logger:  shared.WithLogger(opts.Logger, "component", "pool"),
	}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	if opts.Workers > 0 {
		size := opts.QueueSize
		if size <= 0 {
			size = opts.Workers
		}
		p.jobs = make(chan envelope[J, R], size)
		for range opts.Workers {
			p.wg.Add(1)
			go p.worker()
		}
	}
	return p
}

// Submit queues job and returns a [Future] for its result.
//
// It blocks while the queue is full and fails with [shared.ErrWorkerPoolClose] after [Pool.Close].
func (p *Pool[J, R]) Submit(ctx context.Context, job J) (*Future[R], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, shared.ErrWorkerPoolClose
	}

	env := envelope[J, R]{ctx: ctx, job: job, future: newFuture[R]()}
	if p.jobs == nil {
		p.run(env)
		return env.future, nil
	}

	select {
	case p.jobs <- env:
		return env.future, nil
	case <-ctx.Done():
		return nil, shared.Aborted(ctx, ctx.Err())
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool[J, R]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.jobs != nil {
		close(p.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Pool[J, R]) worker() {
	defer p.wg.Done()
	for env := range p.jobs {
		p.run(env)
	}
}

func (p *Pool[J, R]) run(env envelope[J, R]) {
	var zero R

	if err := env.ctx.Err(); err != nil {
		p.logger.Debug("job cancelled before start", "error", err)
		env.future.complete(zero, shared.Aborted(env.ctx, err))
		return
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(env.ctx); err != nil {
			env.future.complete(zero, shared.Aborted(env.ctx, err))
			return
		}
	}

	env.future.complete(p.handler(env.ctx, env.job), nil)
}

// Future is the pending result of a submitted job.
type Future[R any] struct {
	done   chan struct{}
	result R
	err    error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) complete(r R, err error) {
	f.result, f.err = r, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is ready or ctx ends.
//
// A job that was never run reports why (cancelled before start or rate-limit wait aborted).
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero R
		return zero, shared.Aborted(ctx, ctx.Err())
	}
}
