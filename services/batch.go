package services

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// ItemFailure records one failed item of a batch.
type ItemFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// BatchResult aggregates the outcomes of a batch download. Skipped items
// count as successes from the batch's point of view but are reported
// separately.
type BatchResult struct {
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// BatchProgress is invoked after each finished item with the completed and
// total counts. It may be called from multiple goroutines.
type BatchProgress func(completed, total int)

// albumContext caches lazily resolved album metadata and tracks which album
// directories already received their one-time artifacts (cover image, album
// info sheet).
type albumContext struct {
	mu      sync.Mutex
	albums  map[string]*types.Album
	written map[string]bool
}

func newAlbumContext() *albumContext {
	return &albumContext{
		albums:  make(map[string]*types.Album),
		written: make(map[string]bool),
	}
}

// resolve returns the album for a track, fetching it from the catalog at
// most once per album ID. Resolution failures are cached as nil so a broken
// album is not re-fetched for every track on it.
func (c *albumContext) resolve(ctx context.Context, d *Downloader, track *types.Track) *types.Album {
	if track.Album.ID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if album, seen := c.albums[track.Album.ID]; seen {
		return album
	}
	album, err := d.catalog.Album(ctx, track.Album.ID)
	if err != nil {
		album = nil
	}
	c.albums[track.Album.ID] = album
	return album
}

// markArtifacts reports whether the album's one-time artifacts still need
// writing, claiming the slot when they do.
func (c *albumContext) markArtifacts(albumID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written[albumID] {
		return false
	}
	c.written[albumID] = true
	return true
}

// DownloadTracks downloads a batch of tracks sequentially or on a bounded
// worker pool, depending on the multi-thread setting. Item failures are
// isolated: one broken track never aborts the rest of the batch.
func (d *Downloader) DownloadTracks(ctx context.Context, tracks []*types.Track, album *types.Album, playlist *types.Playlist, progress BatchProgress) BatchResult {
	albums := newAlbumContext()
	if album != nil {
		albums.albums[album.ID] = album
	}
	for i, track := range tracks {
		track.TrackNumberOnPlaylist = i + 1
	}

	var (
		mu        sync.Mutex
		result    BatchResult
		completed int
	)
	record := func(track *types.Track, outcome types.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case types.OutcomeSuccess:
			result.Succeeded++
		case types.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			reason := "download failed"
			if err != nil {
				reason = err.Error()
			}
			result.Failures = append(result.Failures, ItemFailure{Title: track.DisplayTitle(), Reason: reason})
		}
		completed++
		if progress != nil {
			progress(completed, len(tracks))
		}
	}

	run := func(ctx context.Context, track *types.Track) {
		trackAlbum := albums.resolve(ctx, d, track)
		if trackAlbum == nil && album != nil {
			trackAlbum = album
		}
		d.writeAlbumArtifacts(ctx, albums, trackAlbum, tracks, playlist)
		outcome, err := d.DownloadTrack(ctx, track, trackAlbum, playlist)
		record(track, outcome, err)
	}

	if d.settings.MultiThread {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency())
		for _, track := range tracks {
			track := track
			g.Go(func() error {
				run(gctx, track)
				return nil
			})
		}
		g.Wait()
	} else {
		for _, track := range tracks {
			if ctx.Err() != nil {
				record(track, types.OutcomeFailed, ctx.Err())
				continue
			}
			run(ctx, track)
		}
	}
	return result
}

// DownloadVideos downloads a batch of videos sequentially. Video downloads
// are bandwidth-bound segment loops; running them concurrently gains
// nothing.
func (d *Downloader) DownloadVideos(ctx context.Context, videos []*types.Video, album *types.Album, playlist *types.Playlist, progress BatchProgress) BatchResult {
	var result BatchResult
	for i, video := range videos {
		outcome, err := d.DownloadVideo(ctx, video, album, playlist)
		switch outcome {
		case types.OutcomeSuccess:
			result.Succeeded++
		case types.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			reason := "download failed"
			if err != nil {
				reason = err.Error()
			}
			result.Failures = append(result.Failures, ItemFailure{Title: video.DisplayTitle(), Reason: reason})
		}
		if progress != nil {
			progress(i+1, len(videos))
		}
	}
	return result
}

func (d *Downloader) concurrency() int {
	if d.settings.Concurrency > 0 {
		return d.settings.Concurrency
	}
	return 5
}

// writeAlbumArtifacts writes the once-per-album side files: the standalone
// cover image and the album info sheet. Playlist-foldered downloads skip
// them; their tracks do not live in an album directory.
func (d *Downloader) writeAlbumArtifacts(ctx context.Context, albums *albumContext, album *types.Album, tracks []*types.Track, playlist *types.Playlist) {
	if album == nil || (playlist != nil && d.settings.UsePlaylistFolder) {
		return
	}
	if !albums.markArtifacts(album.ID) {
		return
	}

	dir := AlbumDir(d.root, album)
	if d.settings.SaveCovers && album.Cover != "" {
		url := d.catalog.CoverURL(album.Cover, 1280, 1280)
		logArtifact("album cover", downloadImage(ctx, d.client, url, filepath.Join(dir, "cover.jpg")))
	}

	var albumTracks []*types.Track
	for _, track := range tracks {
		if track.Album.ID == album.ID {
			albumTracks = append(albumTracks, track)
		}
	}
	logArtifact("album info sheet", WriteAlbumInfo(dir, album, albumTracks))
}
