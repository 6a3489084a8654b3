package types

import "strings"

// Artist is a single credited artist on a track, video or album.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumRef is the lightweight album reference embedded in a track payload.
// The full Album is resolved lazily through the catalog when needed.
type AlbumRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Track represents a downloadable audio item from the catalog.
type Track struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Version      string   `json:"version,omitempty"`
	Artists      []Artist `json:"artists"`
	Album        AlbumRef `json:"album"`
	TrackNumber  int      `json:"trackNumber"`
	VolumeNumber int      `json:"volumeNumber"`
	ISRC         string   `json:"isrc,omitempty"`
	Copyright    string   `json:"copyright,omitempty"`
	Explicit     bool     `json:"explicit"`
	Popularity   int      `json:"popularity"`
	Duration     int      `json:"duration"`
	ReplayGain   float64  `json:"replayGain,omitempty"`
	Peak         float64  `json:"peak,omitempty"`

	// TrackNumberOnPlaylist is filled in when downloading from a playlist
	// so path templates can number tracks by playlist position.
	TrackNumberOnPlaylist int `json:"-"`
}

// DisplayTitle is the track title with the optional version suffix appended,
// e.g. "Song (Remastered 2024)".
func (t *Track) DisplayTitle() string {
	if t.Version != "" {
		return t.Title + " (" + t.Version + ")"
	}
	return t.Title
}

// ArtistNames returns the credited artist names in order.
func (t *Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// MainArtist returns the first credited artist name, or "" when unknown.
func (t *Track) MainArtist() string {
	if names := t.ArtistNames(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// Video represents a downloadable music video item.
type Video struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Version      string   `json:"version,omitempty"`
	Artists      []Artist `json:"artists"`
	Album        AlbumRef `json:"album"`
	TrackNumber  int      `json:"trackNumber"`
	VolumeNumber int      `json:"volumeNumber"`
	Explicit     bool     `json:"explicit"`
	Duration     int      `json:"duration"`
}

// DisplayTitle mirrors Track.DisplayTitle for videos.
func (v *Video) DisplayTitle() string {
	if v.Version != "" {
		return v.Title + " (" + v.Version + ")"
	}
	return v.Title
}

// Album is the enclosing album context for a batch of tracks.
type Album struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Artists         []Artist `json:"artists"`
	ReleaseDate     string   `json:"releaseDate,omitempty"`
	Cover           string   `json:"cover,omitempty"`
	NumberOfTracks  int      `json:"numberOfTracks"`
	NumberOfVolumes int      `json:"numberOfVolumes"`
	Duration        int      `json:"duration"`
	Explicit        bool     `json:"explicit"`
}

// ArtistNames returns the album-level artist names in order.
func (a *Album) ArtistNames() []string {
	names := make([]string, 0, len(a.Artists))
	for _, artist := range a.Artists {
		if artist.Name != "" {
			names = append(names, artist.Name)
		}
	}
	return names
}

// ArtistLine joins the album artists into a single display string.
func (a *Album) ArtistLine() string {
	return strings.Join(a.ArtistNames(), ", ")
}

// Playlist is the enclosing playlist context for a batch of tracks.
type Playlist struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

// Contributor is a credited contributor with a role, e.g. Composer or
// Producer, fetched separately from the track payload.
type Contributor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
