package ui

import "github.com/desertthunder/pulse/internal/models"

type playlistsFetchedMsg struct {
	playlists []models.SimplifiedPlaylist
	err       error
}

type tracksFetchedMsg struct {
	export *models.PlaylistExport
	saved  []bool
	err    error
}

// accentResolvedMsg reports that a playlist's color handle is done.
type accentResolvedMsg struct {
	playlistID string
}

type toggleKind int

const (
	toggleTrack toggleKind = iota
	toggleAlbum
	toggleArtist
	togglePlaylist
)

func (k toggleKind) String() string {
	switch k {
	case toggleTrack:
		return "track"
	case toggleAlbum:
		return "album"
	case toggleArtist:
		return "artist"
	default:
		return "playlist"
	}
}

// toggledMsg carries the outcome of a save or follow toggle.
type toggledMsg struct {
	kind  toggleKind
	id    string
	name  string
	index int
	on    bool
	err   error
}
