package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// pathUnsafe maps characters that are invalid in file names on at least one
// supported platform to a space.
var pathUnsafe = strings.NewReplacer(
	"/", " ", "\\", " ", ":", " ", "*", " ",
	"?", " ", "\"", " ", "<", " ", ">", " ", "|", " ",
)

// SanitizeName makes a catalog title usable as a single path element.
func SanitizeName(name string) string {
	cleaned := strings.Join(strings.Fields(pathUnsafe.Replace(name)), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return "Unknown"
	}
	return cleaned
}

// AlbumDir returns the directory an album's tracks are written to:
// <root>/<album artist>/<album title>.
func AlbumDir(root string, album *types.Album) string {
	artist := "Unknown Artist"
	if album != nil {
		if names := album.ArtistNames(); len(names) > 0 {
			artist = names[0]
		}
	}
	title := "Unknown Album"
	if album != nil && album.Title != "" {
		title = album.Title
	}
	return filepath.Join(root, SanitizeName(artist), SanitizeName(title))
}

// PlaylistDir returns the directory for playlist-foldered downloads.
func PlaylistDir(root string, playlist *types.Playlist) string {
	return filepath.Join(root, "Playlist", SanitizeName(playlist.Title))
}

// TrackPath computes the final on-disk path for a track. Playlist placement
// wins when a playlist context is present and the playlist-folder setting is
// on; otherwise tracks land under the album directory, with a per-disc
// subdirectory for multi-volume releases.
func TrackPath(root string, track *types.Track, album *types.Album, playlist *types.Playlist, usePlaylistFolder bool, ext string) string {
	if playlist != nil && usePlaylistFolder {
		name := fmt.Sprintf("%02d - %s - %s%s",
			track.TrackNumberOnPlaylist,
			SanitizeName(strings.Join(track.ArtistNames(), ", ")),
			SanitizeName(track.DisplayTitle()),
			ext)
		return filepath.Join(PlaylistDir(root, playlist), name)
	}

	dir := AlbumDir(root, album)
	if album != nil && album.NumberOfVolumes > 1 {
		dir = filepath.Join(dir, fmt.Sprintf("CD %d", track.VolumeNumber))
	}
	name := fmt.Sprintf("%02d - %s%s", track.TrackNumber, SanitizeName(track.DisplayTitle()), ext)
	return filepath.Join(dir, name)
}

// VideoPath computes the final on-disk path for a video.
func VideoPath(root string, video *types.Video, album *types.Album, playlist *types.Playlist, usePlaylistFolder bool) string {
	name := fmt.Sprintf("%s - %s.mp4",
		SanitizeName(videoArtistLine(video)),
		SanitizeName(video.DisplayTitle()))
	if playlist != nil && usePlaylistFolder {
		return filepath.Join(PlaylistDir(root, playlist), name)
	}
	if album != nil {
		return filepath.Join(AlbumDir(root, album), name)
	}
	return filepath.Join(root, "Video", name)
}

func videoArtistLine(video *types.Video) string {
	var names []string
	for _, a := range video.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return "Unknown Artist"
	}
	return strings.Join(names, ", ")
}

// SwapExtension replaces the extension of path with ext.
func SwapExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// SidecarPath returns the path for a sidecar file sharing the track's base
// name, e.g. lyrics as ".lrc".
func SidecarPath(trackPath, ext string) string {
	return SwapExtension(trackPath, ext)
}
