package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

// maxPageSize is the largest page the list endpoints accept.
const maxPageSize = 50

// SpotifyMe prints the current user's profile.
func (r *Runner) SpotifyMe(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	user, err := r.spotify.Me(ctx)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}

	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	r.writePlain("%s\n", formatter.Styles.Title.Render(name))
	r.writePlain("  ID: %s\n", user.ID)
	if user.Email != "" {
		r.writePlain("  Email: %s\n", user.Email)
	}
	if user.Country != "" {
		r.writePlain("  Country: %s\n", user.Country)
	}
	if user.Product != "" {
		r.writePlain("  Plan: %s\n", user.Product)
	}
	return nil
}

// SpotifyPlaylists lists the current user's playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	if err := r.ensure(ctx); err != nil {
		return err
	}

	r.logger.Info("listing spotify playlists", "limit", limit)

	var playlists []models.SimplifiedPlaylist
	if limit > 0 && limit <= maxPageSize {
		page, err := r.spotify.Playlists(ctx, limit, 0)
		if err != nil {
			return loginHint(err)
		}
		playlists = page.Values()
	} else {
		all, err := r.spotify.AllPlaylists(ctx)
		if err != nil {
			return loginHint(err)
		}
		playlists = all
		if limit > 0 && limit < len(playlists) {
			playlists = playlists[:limit]
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	return formatter.WritePlaylists(r.output, playlists)
}

// SpotifyPlaylist shows a playlist or exports it with every track resolved.
func (r *Runner) SpotifyPlaylist(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	format := strings.ToLower(cmd.String("export"))
	output := cmd.String("output")

	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	switch format {
	case "", "csv", "md", "markdown", "txt", "text", "json":
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}

	if err := r.ensure(ctx); err != nil {
		return err
	}

	r.logger.Info("exporting spotify playlist", "id", playlistID, "format", format)

	export, err := r.spotify.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("color") {
		if cover := export.Metadata().CoverURL; cover != "" {
			rgb, err := r.extractor.Extract(ctx, playlistID, cover)
			if err != nil {
				r.logger.Warn("failed to extract playlist color", "id", playlistID, "error", err)
			} else {
				export.Color = &rgb
			}
		}
	}

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s and %s\n", result.TracksFile, result.MetadataFile)
	case "md", "markdown":
		result, err := formatter.WriteMarkdownExport(r.httpClient, export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s (%d files)\n", result.Directory, len(result.Files))
	case "txt", "text":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s\n", path)
	case "json":
		if output == "" {
			output = export.Playlist.ID + ".json"
		}
		data, err := shared.MarshalJSON(export, true)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		r.writePlain("✓ Playlist exported to %s\n", output)
	default:
		if cmd.Bool("json") {
			return r.writeJSON(export, cmd.Bool("pretty"))
		}
		return r.printPlaylist(export)
	}

	r.logger.Info("playlist exported", "id", playlistID, "tracks", len(export.Tracks))
	r.writePlain("  Playlist: %s\n", export.Playlist.Name)
	r.writePlain("  Tracks: %d\n", len(export.Tracks))
	return nil
}

func (r *Runner) printPlaylist(export *models.PlaylistExport) error {
	meta := export.Metadata()

	r.writePlainHeader(meta.Name)
	if meta.Description != "" {
		r.writePlain("%s\n", meta.Description)
	}
	r.writePlain("Owner: %s  Tracks: %d\n", meta.Owner, meta.TrackCount)
	if export.Color != nil {
		r.writePlain("Accent: %s\n", formatter.Swatch(*export.Color))
	}
	r.writePlain("\n")
	return formatter.WriteTracks(r.output, export.Tracks)
}

// SpotifySavedTracks lists one page of saved tracks.
func (r *Runner) SpotifySavedTracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	page, err := r.spotify.SavedTracks(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return loginHint(err)
	}

	saved := page.Values()
	if cmd.Bool("json") {
		return r.writeJSON(saved, cmd.Bool("pretty"))
	}

	tracks := make([]models.Track, 0, len(saved))
	for _, s := range saved {
		tracks = append(tracks, s.Track)
	}

	r.writePlain("Saved tracks %d-%d of %d:\n\n", page.Offset+1, page.Offset+len(tracks), page.Total)
	return formatter.WriteTracks(r.output, tracks)
}
