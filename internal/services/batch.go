package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/pulse/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BatchMode selects how chunks are dispatched.
type BatchMode int

const (
	// Sequential sends one chunk at a time with a fixed delay between requests.
	// Used for membership checks on hot paths.
	Sequential BatchMode = iota
	// Concurrent dispatches every chunk at once. Used for one-off bulk writes.
	Concurrent
)

func (m BatchMode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Concurrent:
		return "concurrent"
	default:
		return ""
	}
}

// BatchOptions configure [BatchedRequest].
type BatchOptions struct {
	Limit int           // Max ids per request
	Mode  BatchMode     // Dispatch strategy
	Delay time.Duration // Gap between sequential requests
}

// Chunk splits items into slices of at most size, preserving order.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// BatchedRequest issues fn once per chunk of at most opts.Limit ids and flattens the results in input order.
//
// Each call must return exactly one result per id.
func BatchedRequest[T any](ctx context.Context, ids []string, opts BatchOptions, fn func(ctx context.Context, chunk []string) ([]T, error)) ([]T, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("%w: batch limit must be positive", shared.ErrInvalidArgument)
	}

	chunks := Chunk(ids, opts.Limit)
	results := make([][]T, len(chunks))

	err := runBatches(ctx, chunks, opts, func(ctx context.Context, i int, chunk []string) error {
		res, err := fn(ctx, chunk)
		if err != nil {
			return err
		}
		if len(res) != len(chunk) {
			return fmt.Errorf("%w: batch %d returned %d results for %d ids", shared.ErrAPIRequest, i, len(res), len(chunk))
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, res := range results {
		out = append(out, res...)
	}
	return out, nil
}

// BatchedDo is [BatchedRequest] for calls without a result body.
func BatchedDo(ctx context.Context, ids []string, opts BatchOptions, fn func(ctx context.Context, chunk []string) error) error {
	if opts.Limit <= 0 {
		return fmt.Errorf("%w: batch limit must be positive", shared.ErrInvalidArgument)
	}

	return runBatches(ctx, Chunk(ids, opts.Limit), opts, func(ctx context.Context, _ int, chunk []string) error {
		return fn(ctx, chunk)
	})
}

func runBatches(ctx context.Context, chunks [][]string, opts BatchOptions, fn func(ctx context.Context, i int, chunk []string) error) error {
	switch opts.Mode {
	case Concurrent:
		g, gctx := errgroup.WithContext(ctx)
		for i, chunk := range chunks {
			g.Go(func() error {
				return fn(gctx, i, chunk)
			})
		}
		return g.Wait()

	default:
		limiter := rate.NewLimiter(rate.Inf, 1)
		if opts.Delay > 0 {
			limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
		}

		for i, chunk := range chunks {
			if err := limiter.Wait(ctx); err != nil {
				return shared.Aborted(ctx, err)
			}
			if err := fn(ctx, i, chunk); err != nil {
				return err
			}
		}
		return nil
	}
}
