package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// Artifacts are the extra files written alongside downloaded audio: lyrics
// sidecars, album info sheets and standalone cover images. All writers here
// are fire-and-log; a failed artifact never fails the download that
// produced it.

// WriteLyricsFile writes lyrics as a sidecar next to the track file.
func WriteLyricsFile(trackPath, lyrics string) error {
	if strings.TrimSpace(lyrics) == "" {
		return nil
	}
	return os.WriteFile(SidecarPath(trackPath, ".lrc"), []byte(lyrics), 0644)
}

// WriteAlbumInfo writes an AlbumInfo.txt sheet into the album directory,
// listing the album header fields and the track list per disc.
func WriteAlbumInfo(albumDir string, album *types.Album, tracks []*types.Track) error {
	if album == nil || len(tracks) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("[ID]          " + album.ID + "\n")
	sb.WriteString("[Title]       " + album.Title + "\n")
	sb.WriteString("[Artists]     " + album.ArtistLine() + "\n")
	sb.WriteString("[ReleaseDate] " + album.ReleaseDate + "\n")
	sb.WriteString(fmt.Sprintf("[SongNum]     %d\n", album.NumberOfTracks))
	sb.WriteString(fmt.Sprintf("[Duration]    %d\n\n", album.Duration))

	volumes := album.NumberOfVolumes
	if volumes < 1 {
		volumes = 1
	}
	for volume := 1; volume <= volumes; volume++ {
		sb.WriteString(fmt.Sprintf("===========CD %d=============\n", volume))
		for _, track := range tracks {
			number := track.VolumeNumber
			if number < 1 {
				number = 1
			}
			if number != volume {
				continue
			}
			sb.WriteString(fmt.Sprintf("   %d:  %s\n", track.TrackNumber, track.DisplayTitle()))
		}
	}

	if err := os.MkdirAll(albumDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(albumDir, "AlbumInfo.txt"), []byte(sb.String()), 0644)
}

// downloadImage fetches url into destPath.
func downloadImage(ctx context.Context, client *http.Client, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return out.Close()
}

// logArtifact logs a failed side-effect without propagating it.
func logArtifact(what string, err error) {
	if err != nil {
		log.Printf("Failed to write %s: %v", what, err)
	}
}
