package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
)

// Styles is the default terminal palette.
var Styles = NewPalette("#1DB954", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	Title lipgloss.Style
	OK    lipgloss.Style
	Err   lipgloss.Style
	Warn  lipgloss.Style
	Help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		Title: NewBold(t),
		OK:    NewBold(s),
		Err:   NewBold(e),
		Warn:  NewStyle(w),
		Help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Swatch renders a block of c followed by its hex code.
func Swatch(c models.RGB) string {
	block := lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("    ")
	return block + " " + c.Hex()
}

// WriteTracks prints a numbered track listing.
func WriteTracks(w io.Writer, tracks []models.Track) error {
	for i, t := range tracks {
		line := fmt.Sprintf("%3d. %s - %s %s\n",
			i+1,
			strings.Join(t.ArtistNames(), ", "),
			t.Name,
			Styles.Help.Render("["+shared.FormatDuration(t.DurationMS)+"]"),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// WritePlaylists prints one playlist per line with its id and track count.
func WritePlaylists(w io.Writer, playlists []models.SimplifiedPlaylist) error {
	for _, p := range playlists {
		line := fmt.Sprintf("%s  %s %s\n",
			Styles.Help.Render(p.ID),
			p.Name,
			Styles.Help.Render(fmt.Sprintf("(%d tracks)", p.Tracks.Total)),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// WriteAlbums prints one album per line with its id, artists and release date.
func WriteAlbums(w io.Writer, albums []models.Album) error {
	for _, a := range albums {
		artists := make([]string, len(a.Artists))
		for i, ar := range a.Artists {
			artists[i] = ar.Name
		}
		line := fmt.Sprintf("%s  %s - %s %s\n",
			Styles.Help.Render(a.ID),
			strings.Join(artists, ", "),
			a.Name,
			Styles.Help.Render("("+a.ReleaseDate+")"),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// WriteMembership prints "✓ id" or "✗ id" per entry, in input order.
func WriteMembership(w io.Writer, ids []string, flags []bool) error {
	for i, id := range ids {
		mark := Styles.Err.Render("✗")
		if i < len(flags) && flags[i] {
			mark = Styles.OK.Render("✓")
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", mark, id); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
