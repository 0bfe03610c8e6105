// Spotify Web API endpoints on top of [Client].
//
// Response schemas live in the models package; see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	"golang.org/x/time/rate"
)

// Per-request id caps.
const (
	LimitTracks            = 50
	LimitAlbums            = 50
	LimitArtists           = 50
	LimitPlaylistItems     = 100
	LimitPlaylistFollowers = 5
)

const (
	defaultBatchDelay = 100 * time.Millisecond
	defaultPageDelay  = 500 * time.Millisecond
	searchLimit       = 20
)

// SpotifyService exposes typed Spotify endpoints.
type SpotifyService struct {
	client     *Client
	batchDelay time.Duration
	pageDelay  time.Duration
	logger     *log.Logger
}

// SpotifyOpts configure a [SpotifyService].
type SpotifyOpts struct {
	BatchDelay time.Duration // Gap between sequential membership checks
	PageDelay  time.Duration // Gap between pages in [AllPages]
	Logger     *log.Logger
}

// NewSpotifyService creates a [SpotifyService] over client.
func NewSpotifyService(client *Client, opts SpotifyOpts) *SpotifyService {
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = defaultPageDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &SpotifyService{
		client:     client,
		batchDelay: opts.BatchDelay,
		pageDelay:  opts.PageDelay,
		logger:     shared.WithLogger(opts.Logger, "component", "spotify"),
	}
}

// Name identifies the provider in logs and output.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Client returns the underlying authenticated client.
func (s *SpotifyService) Client() *Client {
	return s.client
}

// joinIDs escapes each id and joins with literal commas.
func joinIDs(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return strings.Join(escaped, ",")
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func get[T any](ctx context.Context, s *SpotifyService, endpoint string, query url.Values) (*T, error) {
	out, err := Request[T](ctx, s.client, endpoint, RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &shared.ValidationError{Endpoint: endpoint, Err: fmt.Errorf("empty response body")}
	}
	return out, nil
}

// Me returns the current user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*models.User, error) {
	return get[models.User](ctx, s, "/me", nil)
}

// Playlists returns a page of the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, limit, offset int) (*models.Paging[models.SimplifiedPlaylist], error) {
	return get[models.Paging[models.SimplifiedPlaylist]](ctx, s, "/me/playlists", pageQuery(limit, offset))
}

// AllPlaylists walks every page of the current user's playlists.
func (s *SpotifyService) AllPlaylists(ctx context.Context) ([]models.SimplifiedPlaylist, error) {
	return AllPages[models.SimplifiedPlaylist](ctx, s, "/me/playlists?limit=50")
}

// Playlist returns a playlist with its first page of items.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	return get[models.Playlist](ctx, s, "/playlists/"+url.PathEscape(playlistID), nil)
}

// PlaylistTracks returns a page of playlist items. A zero limit requests the maximum of 100.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*models.Paging[models.PlaylistTrack], error) {
	if limit <= 0 || limit > LimitPlaylistItems {
		limit = LimitPlaylistItems
	}
	q := pageQuery(limit, offset)
	q.Set("market", "from_token")
	return get[models.Paging[models.PlaylistTrack]](ctx, s, "/playlists/"+url.PathEscape(playlistID)+"/tracks", q)
}

// ExportPlaylist returns a playlist with every available track, following pagination.
// Removed and unavailable items are skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	pl, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	items := pl.Tracks.Values()
	if pl.Tracks.HasNext() {
		more, err := AllPages[models.PlaylistTrack](ctx, s, *pl.Tracks.Next)
		if err != nil {
			return nil, fmt.Errorf("failed to page playlist items: %w", err)
		}
		items = append(items, more...)
	}

	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.Track != nil {
			tracks = append(tracks, *item.Track)
		}
	}

	s.logger.Debug("exported playlist", "id", playlistID, "tracks", len(tracks))
	return &models.PlaylistExport{Playlist: *pl, Tracks: tracks}, nil
}

// Track fetches one catalog track.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.Track, error) {
	return get[models.Track](ctx, s, "/tracks/"+url.PathEscape(trackID), nil)
}

// Album fetches one album with its first page of tracks.
func (s *SpotifyService) Album(ctx context.Context, albumID string) (*models.Album, error) {
	return get[models.Album](ctx, s, "/albums/"+url.PathEscape(albumID), nil)
}

// Artist fetches one artist.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*models.Artist, error) {
	return get[models.Artist](ctx, s, "/artists/"+url.PathEscape(artistID), nil)
}

// ArtistTopTracks defaults market to from_token.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID, market string) ([]models.Track, error) {
	if market == "" {
		market = "from_token"
	}
	res, err := get[models.TopTracks](ctx, s, "/artists/"+url.PathEscape(artistID)+"/top-tracks", url.Values{"market": {market}})
	if err != nil {
		return nil, err
	}
	return res.Tracks, nil
}

// ArtistAlbums forwards params (include_groups, limit, offset, market) as the query string.
func (s *SpotifyService) ArtistAlbums(ctx context.Context, artistID string, params url.Values) (*models.Paging[models.Album], error) {
	return get[models.Paging[models.Album]](ctx, s, "/artists/"+url.PathEscape(artistID)+"/albums", params)
}

// SavedTracks returns one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*models.Paging[models.SavedTrack], error) {
	return get[models.Paging[models.SavedTrack]](ctx, s, "/me/tracks", pageQuery(limit, offset))
}

// SavedAlbums returns one page of the user's saved albums.
func (s *SpotifyService) SavedAlbums(ctx context.Context, limit, offset int) (*models.Paging[models.SavedAlbum], error) {
	return get[models.Paging[models.SavedAlbum]](ctx, s, "/me/albums", pageQuery(limit, offset))
}

// RecentlyPlayed returns the user's latest play history.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context) (*models.RecentlyPlayed, error) {
	return get[models.RecentlyPlayed](ctx, s, "/me/player/recently-played", nil)
}

// NewReleases returns the first page of featured new albums.
func (s *SpotifyService) NewReleases(ctx context.Context) (*models.Paging[models.Album], error) {
	res, err := get[models.NewReleases](ctx, s, "/browse/new-releases", nil)
	if err != nil {
		return nil, err
	}
	return &res.Albums, nil
}

// Search queries the catalog. Types default to track, artist and album.
func (s *SpotifyService) Search(ctx context.Context, query string, types []string) (*models.SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if len(types) == 0 {
		types = []string{"track", "artist", "album"}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", strings.Join(types, ","))
	q.Set("limit", strconv.Itoa(searchLimit))
	return get[models.SearchResults](ctx, s, "/search", q)
}

// RecommendationSeeds hold seed ids for [SpotifyService.Recommendations].
type RecommendationSeeds struct {
	Tracks  []string
	Artists []string
	Genres  []string
}

// Recommendations returns tracks seeded by any mix of tracks, artists and genres.
func (s *SpotifyService) Recommendations(ctx context.Context, seeds RecommendationSeeds) (*models.Recommendations, error) {
	q := url.Values{}
	if len(seeds.Tracks) > 0 {
		q.Set("seed_tracks", strings.Join(seeds.Tracks, ","))
	}
	if len(seeds.Artists) > 0 {
		q.Set("seed_artists", strings.Join(seeds.Artists, ","))
	}
	if len(seeds.Genres) > 0 {
		q.Set("seed_genres", strings.Join(seeds.Genres, ","))
	}
	return get[models.Recommendations](ctx, s, "/recommendations", q)
}

// CreatePlaylist creates a private playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	user, err := s.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	body := map[string]any{"name": name, "description": description, "public": false}
	endpoint := "/users/" + url.PathEscape(user.ID) + "/playlists"
	playlist, err := Request[models.Playlist](ctx, s.client, endpoint, RequestOptions{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		return nil, &shared.ValidationError{Endpoint: endpoint, Err: fmt.Errorf("empty response body")}
	}
	return playlist, nil
}

// AddTracksToPlaylist appends uris in order, 100 per request, and returns the snapshot ids.
func (s *SpotifyService) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) ([]string, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	var snapshots []string

	err := BatchedDo(ctx, uris, BatchOptions{Limit: LimitPlaylistItems, Mode: Sequential, Delay: s.batchDelay},
		func(ctx context.Context, chunk []string) error {
			snap, err := Request[models.Snapshot](ctx, s.client, endpoint, RequestOptions{
				Method: http.MethodPost,
				Body:   map[string][]string{"uris": chunk},
			})
			if err != nil {
				return err
			}
			if snap != nil {
				snapshots = append(snapshots, snap.SnapshotID)
			}
			return nil
		})
	return snapshots, err
}

// RemoveTrackFromPlaylist removes the occurrence of uri at position.
func (s *SpotifyService) RemoveTrackFromPlaylist(ctx context.Context, playlistID, uri string, position int) error {
	body := map[string]any{
		"tracks": []map[string]any{{"uri": uri, "positions": []int{position}}},
	}
	_, err := s.client.Do(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", RequestOptions{Method: http.MethodDelete, Body: body}, nil)
	return err
}

// Play starts playback of uri on deviceID. Track uris play alone; anything else is a context.
func (s *SpotifyService) Play(ctx context.Context, deviceID, uri string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", shared.ErrMissingArgument)
	}

	body := map[string]any{}
	if strings.HasPrefix(uri, "spotify:track:") {
		body["uris"] = []string{uri}
	} else {
		body["context_uri"] = uri
	}

	_, err := s.client.Do(ctx, "/me/player/play", RequestOptions{
		Method: http.MethodPut,
		Query:  url.Values{"device_id": {deviceID}},
		Body:   body,
	}, nil)
	return err
}

// check runs a sequential batched membership lookup against endpoint?ids=.
func (s *SpotifyService) check(ctx context.Context, endpoint string, extra url.Values, ids []string, limit int) ([]bool, error) {
	if len(ids) == 0 {
		return []bool{}, nil
	}

	return BatchedRequest(ctx, ids, BatchOptions{Limit: limit, Mode: Sequential, Delay: s.batchDelay},
		func(ctx context.Context, chunk []string) ([]bool, error) {
			target := endpoint + "?ids=" + joinIDs(chunk)
			var res []bool
			if _, err := s.client.Do(ctx, target, RequestOptions{Query: extra}, &res); err != nil {
				return nil, err
			}
			return res, nil
		})
}

// write runs a concurrent batched PUT or DELETE against endpoint?ids=.
func (s *SpotifyService) write(ctx context.Context, method, endpoint string, extra url.Values, ids []string, limit int) error {
	if len(ids) == 0 {
		return nil
	}

	s.logger.Debug("bulk write", "method", method, "endpoint", endpoint, "ids", len(ids))
	return BatchedDo(ctx, ids, BatchOptions{Limit: limit, Mode: Concurrent},
		func(ctx context.Context, chunk []string) error {
			_, err := s.client.Do(ctx, endpoint+"?ids="+joinIDs(chunk), RequestOptions{Method: method, Query: extra}, nil)
			return err
		})
}

var artistType = url.Values{"type": {"artist"}}

// CheckSavedTracks reports, in input order, whether each track is saved.
func (s *SpotifyService) CheckSavedTracks(ctx context.Context, ids []string) ([]bool, error) {
	return s.check(ctx, "/me/tracks/contains", nil, ids, LimitTracks)
}

// SaveTracks adds tracks to the library, 50 per request.
func (s *SpotifyService) SaveTracks(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodPut, "/me/tracks", nil, ids, LimitTracks)
}

// RemoveSavedTracks removes tracks from the library, 50 per request.
func (s *SpotifyService) RemoveSavedTracks(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodDelete, "/me/tracks", nil, ids, LimitTracks)
}

// CheckSavedAlbums reports, in input order, whether each album is saved.
func (s *SpotifyService) CheckSavedAlbums(ctx context.Context, ids []string) ([]bool, error) {
	return s.check(ctx, "/me/albums/contains", nil, ids, LimitAlbums)
}

// SaveAlbums adds albums to the library, 50 per request.
func (s *SpotifyService) SaveAlbums(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodPut, "/me/albums", nil, ids, LimitAlbums)
}

// RemoveSavedAlbums removes albums from the library, 50 per request.
func (s *SpotifyService) RemoveSavedAlbums(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodDelete, "/me/albums", nil, ids, LimitAlbums)
}

// CheckFollowingArtists reports, in input order, whether each artist is followed.
func (s *SpotifyService) CheckFollowingArtists(ctx context.Context, ids []string) ([]bool, error) {
	return s.check(ctx, "/me/following/contains", artistType, ids, LimitArtists)
}

// FollowArtists follows artists, 50 per request.
func (s *SpotifyService) FollowArtists(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodPut, "/me/following", artistType, ids, LimitArtists)
}

// UnfollowArtists unfollows artists, 50 per request.
func (s *SpotifyService) UnfollowArtists(ctx context.Context, ids []string) error {
	return s.write(ctx, http.MethodDelete, "/me/following", artistType, ids, LimitArtists)
}

// CheckPlaylistFollowed reports whether each user follows the playlist. At most 5 users per call.
func (s *SpotifyService) CheckPlaylistFollowed(ctx context.Context, playlistID string, userIDs []string) ([]bool, error) {
	if len(userIDs) == 0 {
		return []bool{}, nil
	}
	if len(userIDs) > LimitPlaylistFollowers {
		return nil, fmt.Errorf("%w: playlist follower checks accept %d user ids", shared.ErrTooManyIDs, LimitPlaylistFollowers)
	}
	return s.check(ctx, "/playlists/"+url.PathEscape(playlistID)+"/followers/contains", nil, userIDs, LimitPlaylistFollowers)
}

// FollowPlaylist adds playlistID to the current user's library.
func (s *SpotifyService) FollowPlaylist(ctx context.Context, playlistID string) error {
	_, err := s.client.Do(ctx, "/playlists/"+url.PathEscape(playlistID)+"/followers", RequestOptions{Method: http.MethodPut}, nil)
	return err
}

// UnfollowPlaylist removes playlistID from the current user's library.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	_, err := s.client.Do(ctx, "/playlists/"+url.PathEscape(playlistID)+"/followers", RequestOptions{Method: http.MethodDelete}, nil)
	return err
}

// IsPlaylistFollowed reports whether the current user follows playlistID.
func (s *SpotifyService) IsPlaylistFollowed(ctx context.Context, playlistID string) (bool, error) {
	user, err := s.Me(ctx)
	if err != nil {
		return false, err
	}
	res, err := s.CheckPlaylistFollowed(ctx, playlistID, []string{user.ID})
	if err != nil || len(res) == 0 {
		return false, err
	}
	return res[0], nil
}

// ToggleSaveTrack saves or removes a single track.
func (s *SpotifyService) ToggleSaveTrack(ctx context.Context, trackID string, save bool) error {
	if save {
		return s.SaveTracks(ctx, []string{trackID})
	}
	return s.RemoveSavedTracks(ctx, []string{trackID})
}

// ToggleSaveAlbum saves or removes a single album.
func (s *SpotifyService) ToggleSaveAlbum(ctx context.Context, albumID string, save bool) error {
	if save {
		return s.SaveAlbums(ctx, []string{albumID})
	}
	return s.RemoveSavedAlbums(ctx, []string{albumID})
}

// ToggleFollowArtist follows or unfollows a single artist.
func (s *SpotifyService) ToggleFollowArtist(ctx context.Context, artistID string, follow bool) error {
	if follow {
		return s.FollowArtists(ctx, []string{artistID})
	}
	return s.UnfollowArtists(ctx, []string{artistID})
}

// ToggleFollowPlaylist follows or unfollows a single playlist.
func (s *SpotifyService) ToggleFollowPlaylist(ctx context.Context, playlistID string, follow bool) error {
	if follow {
		return s.FollowPlaylist(ctx, playlistID)
	}
	return s.UnfollowPlaylist(ctx, playlistID)
}

// AllPages follows next links from endpoint and collects every non-null item.
//
// Requests are spaced by the service's page delay.
func AllPages[T any](ctx context.Context, s *SpotifyService, endpoint string) ([]T, error) {
	limiter := rate.NewLimiter(rate.Every(s.pageDelay), 1)

	var items []T
	next := endpoint
	for next != "" {
		if err := limiter.Wait(ctx); err != nil {
			return items, shared.Aborted(ctx, err)
		}

		page, err := get[models.Paging[T]](ctx, s, next, nil)
		if err != nil {
			return items, err
		}
		items = append(items, page.Values()...)

		next = ""
		if page.HasNext() {
			next = *page.Next
		}
	}
	return items, nil
}
