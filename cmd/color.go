package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/desertthunder/pulse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ColorExtract prints the dominant color for --id, extracting it from --url on a cache miss.
func (r *Runner) ColorExtract(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	url := cmd.String("url")
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	if err := r.ensure(ctx); err != nil {
		return err
	}

	resp := models.ColorResponse{ID: id}
	if rgb, ok := r.extractor.Cached(ctx, id); ok {
		resp.Success, resp.Color = true, &rgb
	} else if url == "" {
		return fmt.Errorf("%w: no cached color for %s and no --url given", shared.ErrCacheMiss, id)
	} else {
		rgb, err := r.extractor.Extract(ctx, id, url)
		if err != nil {
			return err
		}
		resp.Success, resp.Color = true, &rgb
	}

	if cmd.Bool("json") {
		return r.writeJSON(resp, cmd.Bool("pretty"))
	}
	return r.writePlain("%s  %s  %s\n", formatter.Swatch(*resp.Color), resp.Color.CSS(), id)
}

// ColorPlaylist extracts colors for every distinct album cover in a playlist.
func (r *Runner) ColorPlaylist(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	if err := r.ensure(ctx); err != nil {
		return err
	}

	export, err := r.spotify.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return loginHint(err)
	}

	reqs := tasks.UniqueRequests(export.CoverRequests())
	if len(reqs) == 0 {
		return r.writePlain("No album covers in %s\n", export.Playlist.Name)
	}

	r.logger.Info("extracting playlist colors", "id", playlistID, "covers", len(reqs))
	if !cmd.Bool("json") {
		r.writePlain("Extracting colors for %s...\n", export.Playlist.Name)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			if cmd.Bool("json") {
				continue
			}
			switch update.Phase {
			case tasks.FetchCovers:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExtractColors:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteReport:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := tasks.BulkExtract(ctx, progressCh, r.extractor, reqs, tasks.BulkExtractOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		ReportPath: cmd.String("report"),
	})
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writePlainHeader("Extraction Complete!")
	r.writePlain("Playlist: %s\n", export.Playlist.Name)
	r.writePlain("Covers: %d/%d extracted\n", result.Succeeded, result.Total)
	if result.Failed > 0 {
		r.writePlain("\nFailed:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.ID, res.Message)
			}
		}
	}
	return nil
}

// ColorForget drops one cached color.
func (r *Runner) ColorForget(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}
	if err := r.extractor.Forget(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Forgot color for %s\n", id)
}

// ColorClear empties the color cache.
func (r *Runner) ColorClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	n, err := r.extractor.Clear(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("color cache cleared", "entries", n)
	return r.writePlain("✓ Cleared %d cached colors\n", n)
}
