package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/pulse/internal/models"
)

// playlistItem implements [list.Item] for a playlist and its cover accent.
type playlistItem struct {
	playlist models.SimplifiedPlaylist
	accent   ColorHandle
}

// Accent is the color currently painted next to the playlist.
func (i playlistItem) Accent() models.RGB {
	if i.accent == nil {
		return models.NeutralColor
	}
	return i.accent.State().Display()
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }

func (i playlistItem) Title() string {
	return swatch(i.Accent()) + " " + i.playlist.Name
}

func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.Tracks.Total)
	if i.playlist.Owner.DisplayName != "" {
		desc += " • " + i.playlist.Owner.DisplayName
	}
	return desc
}

// trackItem implements [list.Item] for a track and its saved state.
type trackItem struct {
	track models.Track
	saved bool
}

func (i trackItem) FilterValue() string { return i.track.Name }

func (i trackItem) Title() string {
	if i.saved {
		return "♥ " + i.track.Name
	}
	return "  " + i.track.Name
}

func (i trackItem) Description() string {
	artists := strings.Join(i.track.ArtistNames(), ", ")
	if i.track.Album.Name == "" {
		return artists
	}
	return artists + " • " + i.track.Album.Name
}

func swatch(c models.RGB) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("  ")
}

func coverURL(images []models.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func newList(title string, width, height int) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = title
	l.SetShowHelp(false)
	return l
}
