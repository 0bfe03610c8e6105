// Package ui implements the interactive library browser using bubbletea's Elm architecture.
//
// The browser has two views:
//  1. [PlaylistListView] : the user's playlists, each with its cover accent color
//  2. [TrackListView] : the tracks of the selected playlist with their saved state
//
// Accent colors come from a [LookupFunc]. Each playlist renders [models.NeutralColor] until its
// [ColorHandle] is done, and a message per handle triggers the repaint.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) plus toggles for saving the
// selected track (s) or its album (a) and following the artist or playlist (f). Contextual help is
// displayed via charmbracelet/bubbles/help.
package ui
