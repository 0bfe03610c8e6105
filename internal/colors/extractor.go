package colors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/desertthunder/pulse/internal/tasks"
)

// workerResult is the message a worker hands back: the wire response plus the typed failure.
type workerResult struct {
	Response models.ColorResponse
	Err      error
}

// Extractor resolves dominant colors through a cache and a worker pool.
//
// Workers only fetch, decode and sample; the cache is read and written on the caller side.
type Extractor struct {
	cache    *repositories.ColorCache
	pool     *tasks.Pool[models.ColorRequest, workerResult]
	client   *http.Client
	step     int
	fraction float64
	logger   *log.Logger
}

// ExtractorOpts configure an [Extractor].
type ExtractorOpts struct {
	Cache              *repositories.ColorCache // Optional; nil disables caching
	HTTPClient         *http.Client
	Workers            int // Zero extracts on the calling goroutine
	PixelStep          int
	SaturationFraction float64
	Logger             *log.Logger
}

// NewExtractor starts the worker pool. Call [Extractor.Close] to stop it.
func NewExtractor(opts ExtractorOpts) *Extractor {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.PixelStep <= 0 {
		opts.PixelStep = DefaultPixelStep
	}
	if opts.SaturationFraction <= 0 || opts.SaturationFraction > 1 {
		opts.SaturationFraction = DefaultSaturationFraction
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	e := &Extractor{
		cache:    opts.Cache,
		client:   opts.HTTPClient,
		step:     opts.PixelStep,
		fraction: opts.SaturationFraction,
		logger:   shared.WithLogger(opts.Logger, "component", "colors"),
	}
	e.pool = tasks.NewPool(tasks.PoolOpts{Workers: opts.Workers, QueueSize: opts.Workers * 8, Logger: opts.Logger}, e.work)
	return e
}

// work is the worker body: fetch, decode, sample. It answers every request with one response.
func (e *Extractor) work(ctx context.Context, req models.ColorRequest) workerResult {
	rgb, err := e.process(ctx, req.ImageURL)
	if err != nil {
		return workerResult{
			Response: models.ColorResponse{Success: false, Error: err.Error()},
			Err:      err,
		}
	}
	return workerResult{Response: models.ColorResponse{Success: true, Color: &rgb, ID: req.ID}}
}

func (e *Extractor) process(ctx context.Context, url string) (models.RGB, error) {
	data, err := fetchImage(ctx, e.client, url)
	if err != nil {
		return models.RGB{}, err
	}

	img, format, err := decodeImage(data)
	if err != nil {
		return models.RGB{}, err
	}

	rgb, err := FromImage(img, e.step, e.fraction)
	if err != nil {
		return models.RGB{}, err
	}

	e.logger.Debug("extracted color", "url", url, "format", format, "color", rgb.Hex())
	return rgb, nil
}

// Cached returns the stored color for entityID, if any.
func (e *Extractor) Cached(ctx context.Context, entityID string) (models.RGB, bool) {
	if e.cache == nil || entityID == "" {
		return models.RGB{}, false
	}

	rgb, err := e.cache.Get(ctx, entityID)
	if err != nil {
		if !errors.Is(err, shared.ErrCacheMiss) {
			e.logger.Warn("color cache read failed", "id", entityID, "error", err)
		}
		return models.RGB{}, false
	}
	return rgb, true
}

// Extract returns the dominant color for entityID.
//
// A cached color is returned without fetching, even when imageURL differs from the one it was
// computed from. Otherwise the image is processed on the pool and the result is cached.
// Failures are [shared.WorkerError] values naming the failed stage.
func (e *Extractor) Extract(ctx context.Context, entityID, imageURL string) (models.RGB, error) {
	if entityID == "" || imageURL == "" {
		return models.RGB{}, fmt.Errorf("%w: entity id and image url are required", shared.ErrInvalidInput)
	}

	if rgb, ok := e.Cached(ctx, entityID); ok {
		return rgb, nil
	}
	return e.extract(ctx, models.ColorRequest{ID: entityID, ImageURL: imageURL})
}

func (e *Extractor) extract(ctx context.Context, req models.ColorRequest) (models.RGB, error) {
	f, err := e.pool.Submit(ctx, req)
	if err != nil {
		return models.RGB{}, err
	}

	res, err := f.Wait(ctx)
	if err != nil {
		return models.RGB{}, err
	}

	if !res.Response.Success || res.Response.Color == nil {
		if res.Err != nil {
			return models.RGB{}, res.Err
		}
		return models.RGB{}, &shared.WorkerError{Stage: shared.StagePixels, Err: errors.New(res.Response.Error)}
	}

	rgb := *res.Response.Color
	if e.cache != nil && res.Response.ID != "" {
		if err := e.cache.Set(ctx, res.Response.ID, rgb); err != nil {
			e.logger.Warn("color cache write failed", "id", res.Response.ID, "error", err)
		}
	}
	return rgb, nil
}

// Lookup starts resolving entityID and returns a [Handle] to watch.
//
// A cache hit resolves the handle before Lookup returns. An empty id or URL yields a resolved
// handle with no color.
func (e *Extractor) Lookup(ctx context.Context, entityID, imageURL string) *Handle {
	if entityID == "" || imageURL == "" {
		return resolvedHandle(models.ColorState{})
	}
	if rgb, ok := e.Cached(ctx, entityID); ok {
		return resolvedHandle(models.ColorState{Color: &rgb})
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		state:  models.ColorState{Loading: true},
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		rgb, err := e.extract(hctx, models.ColorRequest{ID: entityID, ImageURL: imageURL})
		h.resolve(rgb, err)
	}()
	return h
}

// Forget drops the cached color for entityID.
func (e *Extractor) Forget(ctx context.Context, entityID string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Delete(ctx, entityID)
}

// Clear drops every cached color and returns how many were removed.
func (e *Extractor) Clear(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	return e.cache.Clear(ctx)
}

// Close stops the worker pool after in-flight extractions finish.
func (e *Extractor) Close() error {
	return e.pool.Close()
}

// Handle tracks one color lookup.
//
// Consumers render [models.ColorState.Display] until Done is closed.
type Handle struct {
	mu     sync.Mutex
	state  models.ColorState
	done   chan struct{}
	cancel context.CancelFunc
	closed bool
}

func resolvedHandle(state models.ColorState) *Handle {
	h := &Handle{state: state, done: make(chan struct{}), cancel: func() {}}
	close(h.done)
	return h
}

// State returns the current snapshot.
func (h *Handle) State() models.ColorState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the lookup settles or the handle is closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Close stops listening. A result arriving afterwards is dropped.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.cancel()

	select {
	case <-h.done:
	default:
		h.state.Loading = false
		close(h.done)
	}
}

func (h *Handle) resolve(rgb models.RGB, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}

	if err != nil {
		h.state = models.ColorState{Error: err}
	} else {
		h.state = models.ColorState{Color: &rgb}
	}
	close(h.done)
}
