package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	"golang.org/x/time/rate"
)

// ColorExtractor resolves the dominant color of an entity's image.
type ColorExtractor interface {
	Extract(ctx context.Context, entityID, imageURL string) (models.RGB, error)
}

// BulkExtractOpts contains configuration for bulk color extraction.
type BulkExtractOpts struct {
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Extractions started per second (default: 10)
	ReportPath string  // Optional JSON report written when set
}

// ColorResult is the outcome for one entity.
type ColorResult struct {
	ID       string     `json:"id"`
	ImageURL string     `json:"imageUrl"`
	Color    models.RGB `json:"color"`
	Success  bool       `json:"success"`
	Error    error      `json:"-"`
	Message  string     `json:"error,omitempty"`
}

// BulkExtractResult summarizes a bulk run. Results keep input order.
type BulkExtractResult struct {
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Results    []ColorResult `json:"results"`
	ReportPath string        `json:"-"`
}

// UniqueRequests drops requests with an empty id or URL and keeps the first request per id.
func UniqueRequests(reqs []models.ColorRequest) []models.ColorRequest {
	seen := make(map[string]bool, len(reqs))
	out := make([]models.ColorRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.ID == "" || r.ImageURL == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

type colorJob struct {
	index int
	req   models.ColorRequest
}

// BulkExtract resolves colors for many entities concurrently with rate limiting and progress tracking.
//
// Individual failures are recorded in the result; only setup or report errors are returned.
func BulkExtract(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ex ColorExtractor,
	reqs []models.ColorRequest,
	opts BulkExtractOpts,
) (*BulkExtractResult, error) {
	if ex == nil {
		return nil, fmt.Errorf("%w: color extractor not initialized", shared.ErrInvalidArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}

	result := &BulkExtractResult{
		Total:   len(reqs),
		Results: make([]ColorResult, len(reqs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan colorJob, len(reqs))
	results := make(chan colorJob, len(reqs))
	outcomes := make([]ColorResult, len(reqs))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go extractWorker(ctx, &wg, ex, jobs, results, outcomes)
	}

	go func() {
		defer close(jobs)
		sendProgress(prog, queuedUpdate(len(reqs)))
		for i, req := range reqs {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(reqs); j++ {
					outcomes[j] = ColorResult{ID: reqs[j].ID, ImageURL: reqs[j].ImageURL, Error: shared.Aborted(ctx, err)}
					results <- colorJob{index: j, req: reqs[j]}
				}
				return
			}
			jobs <- colorJob{index: i, req: req}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for job := range results {
		completed++
		res := outcomes[job.index]
		if res.Error != nil {
			res.Message = res.Error.Error()
		}
		result.Results[job.index] = res

		if res.Success {
			result.Succeeded++
			sendProgress(prog, extractedUpdate(completed, len(reqs), res))
		} else {
			result.Failed++
			sendProgress(prog, extractFailedUpdate(completed, len(reqs), res))
		}
	}

	if opts.ReportPath == "" {
		return result, nil
	}

	if err := writeReport(result, opts.ReportPath); err != nil {
		return result, fmt.Errorf("extraction completed but failed to write report: %w", err)
	}
	result.ReportPath = opts.ReportPath
	sendProgress(prog, reportUpdate(opts.ReportPath))
	return result, nil
}

// extractWorker is a worker goroutine that extracts colors from the jobs channel.
//
// Each job owns its outcomes slot; the index is handed back on results.
func extractWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	ex ColorExtractor,
	jobs <-chan colorJob,
	results chan<- colorJob,
	outcomes []ColorResult,
) {
	defer wg.Done()

	for job := range jobs {
		res := ColorResult{ID: job.req.ID, ImageURL: job.req.ImageURL}
		if err := ctx.Err(); err != nil {
			res.Error = shared.Aborted(ctx, err)
		} else if rgb, err := ex.Extract(ctx, job.req.ID, job.req.ImageURL); err != nil {
			res.Error = err
		} else {
			res.Color = rgb
			res.Success = true
		}
		outcomes[job.index] = res
		results <- job
	}
}

func writeReport(result *BulkExtractResult, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
