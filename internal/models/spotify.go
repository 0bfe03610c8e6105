package models

// Spotify Web API response schemas.
//
// See https://developer.spotify.com/documentation/web-api/reference/

// Paging is the envelope shared by every list endpoint. Items may be null.
type Paging[T any] struct {
	Href     string  `json:"href" validate:"required"`
	Items    []*T    `json:"items" validate:"dive"`
	Limit    int     `json:"limit" validate:"gte=0"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset" validate:"gte=0"`
	Previous *string `json:"previous"`
	Total    int     `json:"total" validate:"gte=0"`
}

// Values drops null items.
func (p *Paging[T]) Values() []T {
	out := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}

// HasNext reports whether another page exists.
func (p *Paging[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

type Image struct {
	URL    string `json:"url" validate:"required"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify" validate:"required"`
}

type User struct {
	ID           string       `json:"id" validate:"required"`
	DisplayName  string       `json:"display_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Country      string       `json:"country,omitempty"`
	Product      string       `json:"product,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	Images       []Image      `json:"images,omitempty" validate:"dive"`
}

type Artist struct {
	ID     string   `json:"id" validate:"required"`
	Name   string   `json:"name" validate:"required"`
	Type   string   `json:"type" validate:"eq=artist"`
	URI    string   `json:"uri" validate:"required"`
	Genres []string `json:"genres,omitempty"`
	Images []Image  `json:"images,omitempty" validate:"dive"`
}

type Album struct {
	ID          string                   `json:"id" validate:"required"`
	Name        string                   `json:"name" validate:"required"`
	Artists     []Artist                 `json:"artists" validate:"dive"`
	Images      []Image                  `json:"images" validate:"dive"`
	ReleaseDate string                   `json:"release_date"`
	TotalTracks int                      `json:"total_tracks" validate:"gte=0"`
	Type        string                   `json:"type" validate:"eq=album"`
	URI         string                   `json:"uri" validate:"required"`
	Tracks      *Paging[SimplifiedTrack] `json:"tracks,omitempty"`
}

// CoverURL returns the first (largest) image, if any.
func (a Album) CoverURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

type Track struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"eq=track"`
	URI         string   `json:"uri" validate:"required"`
	DurationMS  int      `json:"duration_ms" validate:"gte=0"`
	Artists     []Artist `json:"artists" validate:"dive"`
	Album       Album    `json:"album"`
	IsLocal     bool     `json:"is_local"`
	Popularity  int      `json:"popularity" validate:"gte=0,lte=100"`
	TrackNumber int      `json:"track_number" validate:"gte=0"`
	PreviewURL  *string  `json:"preview_url"`
}

// ArtistNames lists the credited artist names in order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

type SimplifiedTrack struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name" validate:"required"`
	Type        string       `json:"type" validate:"eq=track"`
	URI         string       `json:"uri" validate:"required"`
	Href        string       `json:"href"`
	Artists     []Artist     `json:"artists" validate:"dive"`
	DiscNumber  int          `json:"disc_number" validate:"gte=0"`
	DurationMS  int          `json:"duration_ms" validate:"gte=0"`
	Explicit    bool         `json:"explicit"`
	TrackNumber int          `json:"track_number" validate:"gte=0"`
	PreviewURL  *string      `json:"preview_url"`
	IsPlayable  *bool        `json:"is_playable,omitempty"`
	ExternalURL ExternalURLs `json:"external_urls"`
}

type SavedTrack struct {
	AddedAt string `json:"added_at" validate:"required"`
	Track   Track  `json:"track"`
}

type SavedAlbum struct {
	AddedAt string `json:"added_at" validate:"required"`
	Album   Album  `json:"album"`
}

// PlaylistTrack is a playlist entry. Track is null for removed or unavailable items.
type PlaylistTrack struct {
	AddedAt string `json:"added_at"`
	AddedBy *User  `json:"added_by,omitempty"`
	IsLocal bool   `json:"is_local"`
	Track   *Track `json:"track"`
}

type Followers struct {
	Total int `json:"total" validate:"gte=0"`
}

type Playlist struct {
	ID          string                `json:"id" validate:"required"`
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	Images      []Image               `json:"images" validate:"dive"`
	Owner       User                  `json:"owner"`
	Tracks      Paging[PlaylistTrack] `json:"tracks"`
	URI         string                `json:"uri" validate:"required"`
	Public      *bool                 `json:"public,omitempty"`
	Followers   *Followers            `json:"followers,omitempty"`
}

type PlaylistTracksRef struct {
	Href  string `json:"href"`
	Total int    `json:"total" validate:"gte=0"`
}

type SimplifiedPlaylist struct {
	ID          string            `json:"id" validate:"required"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Images      []Image           `json:"images" validate:"dive"`
	Owner       User              `json:"owner"`
	Tracks      PlaylistTracksRef `json:"tracks"`
	URI         string            `json:"uri" validate:"required"`
	Public      *bool             `json:"public,omitempty"`
}

type TopTracks struct {
	Tracks []Track `json:"tracks" validate:"dive"`
}

type PlayHistory struct {
	Track    Track  `json:"track"`
	PlayedAt string `json:"played_at"`
}

type RecentlyPlayed struct {
	Items []PlayHistory `json:"items" validate:"dive"`
}

type NewReleases struct {
	Albums Paging[Album] `json:"albums"`
}

type SearchResults struct {
	Tracks    *Paging[Track]              `json:"tracks,omitempty"`
	Artists   *Paging[Artist]             `json:"artists,omitempty"`
	Albums    *Paging[Album]              `json:"albums,omitempty"`
	Playlists *Paging[SimplifiedPlaylist] `json:"playlists,omitempty"`
}

type RecommendationSeed struct {
	AfterFilteringSize int    `json:"afterFilteringSize"`
	AfterRelinkingSize int    `json:"afterRelinkingSize"`
	Href               string `json:"href"`
	ID                 string `json:"id"`
	InitialPoolSize    int    `json:"initialPoolSize"`
	Type               string `json:"type"`
}

type Recommendations struct {
	Tracks []Track              `json:"tracks" validate:"dive"`
	Seeds  []RecommendationSeed `json:"seeds"`
}

// Snapshot is returned by playlist item writes.
type Snapshot struct {
	SnapshotID string `json:"snapshot_id" validate:"required"`
}
