package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pulse/internal/services"
	"github.com/desertthunder/pulse/internal/ui"
	"github.com/urfave/cli/v3"
)

var _ ui.Library = (*services.SpotifyService)(nil)

func defaultBrowseLog() string {
	return filepath.Join(os.TempDir(), "pulse-browse.log")
}

// Browse launches the interactive library browser.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs before wiring so the services' loggers inherit the file.
	logFile, err := os.OpenFile(cmd.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	r.logger.SetOutput(logFile)

	if err := r.ensure(ctx); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.spotify, r.accentLookup())
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return loginHint(model.Err())
}

// accentLookup adapts the extractor to the browser's lookup signature.
func (r *Runner) accentLookup() ui.LookupFunc {
	return func(ctx context.Context, entityID, imageURL string) ui.ColorHandle {
		return r.extractor.Lookup(ctx, entityID, imageURL)
	}
}
