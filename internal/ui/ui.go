package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
)

// Library is the slice of the Spotify service the browser reads and toggles.
type Library interface {
	AllPlaylists(ctx context.Context) ([]models.SimplifiedPlaylist, error)
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)
	CheckSavedTracks(ctx context.Context, ids []string) ([]bool, error)
	CheckSavedAlbums(ctx context.Context, ids []string) ([]bool, error)
	CheckFollowingArtists(ctx context.Context, ids []string) ([]bool, error)
	IsPlaylistFollowed(ctx context.Context, playlistID string) (bool, error)
	ToggleSaveTrack(ctx context.Context, trackID string, save bool) error
	ToggleSaveAlbum(ctx context.Context, albumID string, save bool) error
	ToggleFollowArtist(ctx context.Context, artistID string, follow bool) error
	ToggleFollowPlaylist(ctx context.Context, playlistID string, follow bool) error
}

// ColorHandle is a pending accent color lookup.
type ColorHandle interface {
	State() models.ColorState
	Done() <-chan struct{}
	Close()
}

// LookupFunc starts an accent lookup for an entity's cover image.
type LookupFunc func(ctx context.Context, entityID, imageURL string) ColorHandle

var errNoSelection = errors.New("nothing selected")

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      Library
	lookup       LookupFunc
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	accents      map[string]ColorHandle
	selected     *models.PlaylistExport
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a browser over library. A nil lookup leaves every accent neutral.
func NewModel(ctx context.Context, library Library, lookup LookupFunc) *Model {
	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		library:      library,
		lookup:       lookup,
		playlistList: newList("Playlists", 0, 0),
		trackList:    newList("Tracks", 0, 0),
		accents:      make(map[string]ColorHandle),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Err is the error that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}

// Close stops every pending accent lookup.
func (m *Model) Close() {
	for _, h := range m.accents {
		h.Close()
	}
}

// Init fetches the user's playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		}

	case playlistsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		return m, m.showPlaylists(msg.playlists)

	case accentResolvedMsg:
		// Items read their handle on every render, so the repaint is enough.
		return m, nil

	case tracksFetchedMsg:
		if msg.err != nil {
			m.status = formatter.Styles.Err.Render(fmt.Sprintf("Error: %v", msg.err))
			m.view = PlaylistListView
			return m, nil
		}
		return m, m.showTracks(msg.export, msg.saved)

	case toggledMsg:
		return m, m.applyToggle(msg)
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return formatter.Styles.Err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.render(m.playlistList, m.keys.enter, m.keys.follow, m.keys.quit)
	case TrackListView:
		return m.render(m.trackList, m.keys.save, m.keys.album, m.keys.follow, m.keys.back, m.keys.quit)
	default:
		return ""
	}
}

func (m *Model) render(l list.Model, keys ...key.Binding) string {
	out := l.View()
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, m.help.ShortHelpView(keys))
}

func (m *Model) showPlaylists(playlists []models.SimplifiedPlaylist) tea.Cmd {
	items := make([]list.Item, len(playlists))
	cmds := make([]tea.Cmd, 0, len(playlists)+1)
	for i, pl := range playlists {
		item := playlistItem{playlist: pl}
		if h := m.startAccent(pl); h != nil {
			item.accent = h
			cmds = append(cmds, m.waitForAccent(pl.ID, h))
		}
		items[i] = item
	}
	cmds = append(cmds, m.playlistList.SetItems(items))
	return tea.Batch(cmds...)
}

func (m *Model) startAccent(pl models.SimplifiedPlaylist) ColorHandle {
	cover := coverURL(pl.Images)
	if m.lookup == nil || cover == "" {
		return nil
	}
	if old, ok := m.accents[pl.ID]; ok {
		old.Close()
	}
	h := m.lookup(m.ctx, pl.ID, cover)
	m.accents[pl.ID] = h
	return h
}

func (m *Model) waitForAccent(playlistID string, h ColorHandle) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-h.Done():
			return accentResolvedMsg{playlistID: playlistID}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) showTracks(export *models.PlaylistExport, saved []bool) tea.Cmd {
	m.selected = export
	items := make([]list.Item, len(export.Tracks))
	for i, track := range export.Tracks {
		items[i] = trackItem{track: track, saved: i < len(saved) && saved[i]}
	}
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", export.Playlist.Name)
	m.trackList.ResetSelected()
	m.trackList.ResetFilter()
	m.status = ""
	m.view = TrackListView
	return m.trackList.SetItems(items)
}

func (m *Model) applyToggle(msg toggledMsg) tea.Cmd {
	if msg.err != nil {
		m.status = formatter.Styles.Err.Render(fmt.Sprintf("Error: %v", msg.err))
		return nil
	}

	verb := map[bool]string{true: "Saved", false: "Removed"}
	if msg.kind == toggleArtist || msg.kind == togglePlaylist {
		verb = map[bool]string{true: "Followed", false: "Unfollowed"}
	}
	m.status = formatter.Styles.OK.Render(fmt.Sprintf("%s %s %q", verb[msg.on], msg.kind, msg.name))

	if msg.kind != toggleTrack {
		return nil
	}
	for i, it := range m.trackList.Items() {
		if ti, ok := it.(trackItem); ok && ti.track.ID == msg.id {
			ti.saved = msg.on
			return m.trackList.SetItem(i, ti)
		}
	}
	return nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.follow):
		return m, m.toggleFollowPlaylist()
	}
	return m.updateLists(msg)
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.status = ""
		return m, nil
	case key.Matches(msg, m.keys.save):
		return m, m.toggleSaveTrack()
	case key.Matches(msg, m.keys.album):
		return m, m.toggleSaveAlbum()
	case key.Matches(msg, m.keys.follow):
		return m, m.toggleFollowArtist()
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.library.AllPlaylists(m.ctx)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	return func() tea.Msg {
		export, err := m.library.ExportPlaylist(m.ctx, playlistID)
		if err != nil {
			return tracksFetchedMsg{err: err}
		}
		ids := make([]string, len(export.Tracks))
		for i, t := range export.Tracks {
			ids[i] = t.ID
		}
		saved, err := m.library.CheckSavedTracks(m.ctx, ids)
		return tracksFetchedMsg{export: export, saved: saved, err: err}
	}
}

func (m *Model) selectedTrack() (trackItem, bool) {
	ti, ok := m.trackList.SelectedItem().(trackItem)
	return ti, ok
}

func (m *Model) toggleSaveTrack() tea.Cmd {
	ti, ok := m.selectedTrack()
	if !ok {
		return nil
	}
	id, name, save := ti.track.ID, ti.track.Name, !ti.saved
	return func() tea.Msg {
		err := m.library.ToggleSaveTrack(m.ctx, id, save)
		return toggledMsg{kind: toggleTrack, id: id, name: name, on: save, err: err}
	}
}

func (m *Model) toggleSaveAlbum() tea.Cmd {
	ti, ok := m.selectedTrack()
	if !ok || ti.track.Album.ID == "" {
		return failed(toggleAlbum, errNoSelection)
	}
	album := ti.track.Album
	return func() tea.Msg {
		flags, err := m.library.CheckSavedAlbums(m.ctx, []string{album.ID})
		if err != nil {
			return toggledMsg{kind: toggleAlbum, err: err}
		}
		save := !flags[0]
		err = m.library.ToggleSaveAlbum(m.ctx, album.ID, save)
		return toggledMsg{kind: toggleAlbum, id: album.ID, name: album.Name, on: save, err: err}
	}
}

func (m *Model) toggleFollowArtist() tea.Cmd {
	ti, ok := m.selectedTrack()
	if !ok || len(ti.track.Artists) == 0 {
		return failed(toggleArtist, errNoSelection)
	}
	artist := ti.track.Artists[0]
	return func() tea.Msg {
		flags, err := m.library.CheckFollowingArtists(m.ctx, []string{artist.ID})
		if err != nil {
			return toggledMsg{kind: toggleArtist, err: err}
		}
		follow := !flags[0]
		err = m.library.ToggleFollowArtist(m.ctx, artist.ID, follow)
		return toggledMsg{kind: toggleArtist, id: artist.ID, name: artist.Name, on: follow, err: err}
	}
}

func (m *Model) toggleFollowPlaylist() tea.Cmd {
	pl, ok := m.playlistList.SelectedItem().(playlistItem)
	if !ok {
		return nil
	}
	id, name := pl.playlist.ID, pl.playlist.Name
	return func() tea.Msg {
		followed, err := m.library.IsPlaylistFollowed(m.ctx, id)
		if err != nil {
			return toggledMsg{kind: togglePlaylist, err: err}
		}
		err = m.library.ToggleFollowPlaylist(m.ctx, id, !followed)
		return toggledMsg{kind: togglePlaylist, id: id, name: name, on: !followed, err: err}
	}
}

func failed(kind toggleKind, err error) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg{kind: kind, err: err}
	}
}
