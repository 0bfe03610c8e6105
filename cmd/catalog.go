package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/services"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

func requiredID(cmd *cli.Command) (string, error) {
	id := cmd.String("id")
	if id == "" {
		return "", fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	return id, nil
}

// SpotifyTrack shows one catalog track.
func (r *Runner) SpotifyTrack(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	track, err := r.spotify.Track(ctx, id)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.Styles.Title.Render(track.Name))
	r.writePlain("  Artists: %s\n", strings.Join(track.ArtistNames(), ", "))
	r.writePlain("  Album: %s\n", track.Album.Name)
	r.writePlain("  Length: %s\n", shared.FormatDuration(track.DurationMS))
	r.writePlain("  URI: %s\n", track.URI)
	return nil
}

// SpotifyAlbum shows an album with its first page of tracks and, with --color, its accent.
func (r *Runner) SpotifyAlbum(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	album, err := r.spotify.Album(ctx, id)
	if err != nil {
		return loginHint(err)
	}

	var accent *models.RGB
	if cmd.Bool("color") {
		accent, err = r.waitForAccent(ctx, album.ID, album.CoverURL())
		if err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			*models.Album
			Color *models.RGB `json:"color,omitempty"`
		}{album, accent}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(album.Name)
	if err := formatter.WriteAlbums(r.output, []models.Album{*album}); err != nil {
		return err
	}
	if accent != nil {
		r.writePlain("Accent: %s\n", formatter.Swatch(*accent))
	}
	if album.Tracks == nil {
		return nil
	}

	r.writePlain("\n")
	for i, t := range album.Tracks.Values() {
		r.writePlain("%3d. %s %s\n", i+1, t.Name,
			formatter.Styles.Help.Render("["+shared.FormatDuration(t.DurationMS)+"]"))
	}
	return nil
}

// waitForAccent resolves an accent through a lookup handle. Extraction failures are logged, not returned.
func (r *Runner) waitForAccent(ctx context.Context, entityID, imageURL string) (*models.RGB, error) {
	h := r.extractor.Lookup(ctx, entityID, imageURL)
	defer h.Close()

	select {
	case <-h.Done():
	case <-ctx.Done():
		return nil, shared.Aborted(ctx, ctx.Err())
	}

	state := h.State()
	if state.Error != nil {
		r.logger.Warn("failed to extract accent", "id", entityID, "error", state.Error)
	}
	return state.Color, nil
}

// SpotifyArtist shows an artist, optionally with top tracks and albums.
func (r *Runner) SpotifyArtist(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	artist, err := r.spotify.Artist(ctx, id)
	if err != nil {
		return loginHint(err)
	}

	var top []models.Track
	if cmd.Bool("top") {
		if top, err = r.spotify.ArtistTopTracks(ctx, id, cmd.String("market")); err != nil {
			return loginHint(err)
		}
	}

	var albums []models.Album
	if cmd.Bool("albums") {
		params := url.Values{}
		if groups := cmd.String("include-groups"); groups != "" {
			params.Set("include_groups", groups)
		}
		if limit := cmd.Int("limit"); limit > 0 {
			params.Set("limit", strconv.Itoa(limit))
		}
		page, err := r.spotify.ArtistAlbums(ctx, id, params)
		if err != nil {
			return loginHint(err)
		}
		albums = page.Values()
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			*models.Artist
			TopTracks []models.Track `json:"top_tracks,omitempty"`
			Albums    []models.Album `json:"albums,omitempty"`
		}{artist, top, albums}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.Styles.Title.Render(artist.Name))
	if len(artist.Genres) > 0 {
		r.writePlain("  Genres: %s\n", strings.Join(artist.Genres, ", "))
	}
	if len(top) > 0 {
		r.writePlainln("Top tracks:")
		if err := formatter.WriteTracks(r.output, top); err != nil {
			return err
		}
	}
	if len(albums) > 0 {
		r.writePlainln("Albums:")
		return formatter.WriteAlbums(r.output, albums)
	}
	return nil
}

// SpotifySearch queries the catalog and prints each result kind.
func (r *Runner) SpotifySearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.StringArgs("query"), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: a search query is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	res, err := r.spotify.Search(ctx, query, cmd.StringSlice("type"))
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	if res.Tracks != nil {
		r.writePlainln("Tracks:")
		if err := formatter.WriteTracks(r.output, res.Tracks.Values()); err != nil {
			return err
		}
	}
	if res.Artists != nil {
		r.writePlainln("Artists:")
		for _, a := range res.Artists.Values() {
			r.writePlain("%s  %s\n", formatter.Styles.Help.Render(a.ID), a.Name)
		}
	}
	if res.Albums != nil {
		r.writePlainln("Albums:")
		if err := formatter.WriteAlbums(r.output, res.Albums.Values()); err != nil {
			return err
		}
	}
	if res.Playlists != nil {
		r.writePlainln("Playlists:")
		return formatter.WritePlaylists(r.output, res.Playlists.Values())
	}
	return nil
}

// SpotifySavedAlbums lists one page of saved albums.
func (r *Runner) SpotifySavedAlbums(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	page, err := r.spotify.SavedAlbums(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return loginHint(err)
	}

	saved := page.Values()
	if cmd.Bool("json") {
		return r.writeJSON(saved, cmd.Bool("pretty"))
	}

	albums := make([]models.Album, 0, len(saved))
	for _, s := range saved {
		albums = append(albums, s.Album)
	}

	r.writePlain("Saved albums %d-%d of %d:\n\n", page.Offset+1, page.Offset+len(albums), page.Total)
	return formatter.WriteAlbums(r.output, albums)
}

// SpotifyRecent lists recently played tracks.
func (r *Runner) SpotifyRecent(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	history, err := r.spotify.RecentlyPlayed(ctx)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(history.Items, cmd.Bool("pretty"))
	}

	for _, item := range history.Items {
		r.writePlain("%s  %s - %s\n",
			formatter.Styles.Help.Render(item.PlayedAt),
			strings.Join(item.Track.ArtistNames(), ", "),
			item.Track.Name,
		)
	}
	return nil
}

// SpotifyNewReleases lists featured new albums.
func (r *Runner) SpotifyNewReleases(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	page, err := r.spotify.NewReleases(ctx)
	if err != nil {
		return loginHint(err)
	}

	albums := page.Values()
	if cmd.Bool("json") {
		return r.writeJSON(albums, cmd.Bool("pretty"))
	}
	return formatter.WriteAlbums(r.output, albums)
}

// SpotifyRecommend lists tracks seeded by tracks, artists and genres.
func (r *Runner) SpotifyRecommend(ctx context.Context, cmd *cli.Command) error {
	seeds := services.RecommendationSeeds{
		Tracks:  cmd.StringSlice("track"),
		Artists: cmd.StringSlice("artist"),
		Genres:  cmd.StringSlice("genre"),
	}
	if len(seeds.Tracks)+len(seeds.Artists)+len(seeds.Genres) == 0 {
		return fmt.Errorf("%w: at least one --track, --artist or --genre seed is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	res, err := r.spotify.Recommendations(ctx, seeds)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}
	return formatter.WriteTracks(r.output, res.Tracks)
}

// SpotifyPlay starts playback of a track or context on a device.
func (r *Runner) SpotifyPlay(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.String("uri")
	if uri == "" {
		return fmt.Errorf("%w: --uri flag is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	if err := r.spotify.Play(ctx, cmd.String("device"), uri); err != nil {
		return loginHint(err)
	}
	return r.writePlain("✓ Playing %s\n", uri)
}
