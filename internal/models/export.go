package models

// PlaylistExport is a playlist with every track resolved, used for file exports.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
	Color    *RGB     `json:"color,omitempty"`
}

// PlaylistMetadata is the playlist without its items.
type PlaylistMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	URI         string `json:"uri"`
	Public      bool   `json:"public"`
	TrackCount  int    `json:"track_count"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// Metadata summarizes the export's playlist.
func (e *PlaylistExport) Metadata() PlaylistMetadata {
	p := e.Playlist
	m := PlaylistMetadata{
		ID:         p.ID,
		Name:       p.Name,
		Owner:      p.Owner.DisplayName,
		URI:        p.URI,
		TrackCount: len(e.Tracks),
	}
	if m.Owner == "" {
		m.Owner = p.Owner.ID
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Public != nil {
		m.Public = *p.Public
	}
	if len(p.Images) > 0 {
		m.CoverURL = p.Images[0].URL
	}
	return m
}

// CoverRequests lists one color request per distinct album with artwork.
func (e *PlaylistExport) CoverRequests() []ColorRequest {
	seen := map[string]bool{}
	var reqs []ColorRequest
	for _, t := range e.Tracks {
		url := t.Album.CoverURL()
		if t.Album.ID == "" || url == "" || seen[t.Album.ID] {
			continue
		}
		seen[t.Album.ID] = true
		reqs = append(reqs, ColorRequest{ID: t.Album.ID, ImageURL: url})
	}
	return reqs
}
