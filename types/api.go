package types

// AudioFile represents a downloaded media file discovered on disk.
type AudioFile struct {
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Format   string         `json:"format"` // "flac", "m4a", "mp4"
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents tag metadata read from a media file.
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}
