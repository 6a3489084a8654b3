package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
	"github.com/devicelocksmith/Tidal-Media-Downloader/config"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// Downloader drives the per-item pipeline: resolve a stream, download it,
// decrypt, repackage into the target container, tag, normalize cover art and
// finally move the finished file into place. Failures in descriptive steps
// (tags, covers, sidecars) are logged and absorbed; failures up to and
// including decryption are fatal to the item.
type Downloader struct {
	catalog  catalog.Client
	settings *config.Settings
	printer  *Printer
	caps     *Capabilities
	remuxer  *Remuxer
	cover    *CoverNormalizer
	root     string
	client   *http.Client
}

// NewDownloader wires a downloader against the catalog client with all
// downloads rooted at root.
func NewDownloader(client catalog.Client, settings *config.Settings, root string) *Downloader {
	caps := DetectCapabilities()
	cover := NewCoverNormalizer(caps)
	if settings.CoverMaxPixels > 0 {
		cover.MaxPixels = settings.CoverMaxPixels
	}
	return &Downloader{
		catalog:  client,
		settings: settings,
		printer:  &Printer{},
		caps:     caps,
		remuxer:  NewRemuxer(caps),
		cover:    cover,
		root:     root,
		client:   &http.Client{},
	}
}

// SetQuiet suppresses console output, for server-mode jobs.
func (d *Downloader) SetQuiet(quiet bool) {
	d.printer.Quiet = quiet
}

// Root returns the download root directory.
func (d *Downloader) Root() string { return d.root }

// Settings returns the active settings.
func (d *Downloader) Settings() *config.Settings { return d.settings }

// interactive reports whether per-item console output is appropriate:
// multi-threaded batches interleave, so they stay quiet.
func (d *Downloader) interactive() bool {
	return !d.settings.MultiThread
}

// DownloadTrack runs the full pipeline for one track. album and playlist
// provide optional context for paths and tags; either may be nil.
func (d *Downloader) DownloadTrack(ctx context.Context, track *types.Track, album *types.Album, playlist *types.Playlist) (types.Outcome, error) {
	stream, err := d.catalog.ResolveStream(ctx, track.ID, d.settings.AudioQuality)
	if err != nil {
		d.printer.Err("%s: %v", track.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	path := TrackPath(d.root, track, album, playlist, d.settings.UsePlaylistFolder, stream.Extension())

	if d.settings.ShowTrackInfo && d.interactive() {
		d.printer.Info("%s  [%s / %s]", track.DisplayTitle(), stream.Codec, stream.SoundQuality)
	}

	if d.settings.CheckExist && d.alreadyDownloaded(ctx, path, stream) {
		d.printer.Success("%s (skip:already exists!)", track.DisplayTitle())
		return types.OutcomeSkipped, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.OutcomeFailed, err
	}
	// The working directory lives next to the target so the final rename
	// stays on one filesystem.
	workDir, err := os.MkdirTemp(filepath.Dir(path), ".tidal-dl-")
	if err != nil {
		return types.OutcomeFailed, err
	}
	defer os.RemoveAll(workDir)

	encrypted := filepath.Join(workDir, "stream.part")
	if err := d.fetchStream(ctx, stream, encrypted, track.DisplayTitle()); err != nil {
		d.printer.Err("%s: %v", track.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	decrypted := filepath.Join(workDir, "stream"+stream.Extension())
	if err := DecryptStream(stream, encrypted, decrypted); err != nil {
		d.printer.Err("%s: %v", track.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	path, decrypted = d.normalizeContainer(ctx, path, decrypted, stream)

	var contributors []types.Contributor
	if c, err := d.catalog.Contributors(ctx, track.ID); err == nil {
		contributors = c
	} else {
		log.Printf("Failed to fetch contributors for track %s: %v", track.ID, err)
	}

	var lyrics string
	if d.settings.LyricFile {
		if l, err := d.catalog.Lyrics(ctx, track.ID); err == nil {
			lyrics = l
		} else if !errors.Is(err, catalog.ErrNotFound) {
			log.Printf("Failed to fetch lyrics for track %s: %v", track.ID, err)
		}
	}

	if SniffFile(decrypted) == ContainerFLAC {
		tags := BuildTrackTags(track, album, stream, contributors, lyrics)
		if _, err := ApplyTags(decrypted, tags); err != nil {
			log.Printf("Failed to tag %s: %v", filepath.Base(path), err)
		}
		ok, status := d.cover.Ensure(ctx, decrypted, d.coverFetcher(ctx, album))
		if ok {
			log.Printf("Cover art for %s: %s", filepath.Base(path), status)
		} else {
			d.printer.Warn("%s: %s", track.DisplayTitle(), status)
		}
	}

	if err := os.Rename(decrypted, path); err != nil {
		d.printer.Err("%s: %v", track.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	if d.settings.LyricFile {
		logArtifact("lyrics sidecar", WriteLyricsFile(path, lyrics))
	}

	d.printer.Success("%s", track.DisplayTitle())
	return types.OutcomeSuccess, nil
}

// normalizeContainer repackages MP4-wrapped FLAC essence into a native FLAC
// file. When every backend fails the item degrades to the container it
// arrived in and the target path follows.
func (d *Downloader) normalizeContainer(ctx context.Context, path, decrypted string, stream *types.StreamDescriptor) (string, string) {
	if filepath.Ext(path) != ".flac" || !d.remuxer.NeedsRemux(decrypted, stream) {
		return path, decrypted
	}

	remuxed, cover, err := d.remuxer.Remux(ctx, decrypted)
	if err != nil {
		d.printer.Warn("%s: keeping original container", filepath.Base(path))
		log.Printf("Remux failed for %s: %v", filepath.Base(path), err)
		return SwapExtension(path, ".m4a"), decrypted
	}

	if cover != nil {
		if err := ReattachCover(remuxed, cover); err != nil {
			log.Printf("Failed to re-attach cover after remux: %v", err)
		}
	}
	os.Remove(decrypted)
	return path, remuxed
}

// alreadyDownloaded reports whether path already holds at least the remote
// stream's size. Segmented streams have no single remote size and never
// skip.
func (d *Downloader) alreadyDownloaded(ctx context.Context, path string, stream *types.StreamDescriptor) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	if len(stream.URLs) > 1 {
		return false
	}

	remote := d.remoteSize(ctx, stream.URL)
	return remote > 0 && info.Size() >= remote
}

func (d *Downloader) remoteSize(ctx context.Context, url string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}
	return resp.ContentLength
}

// fetchStream downloads the stream's bytes into destPath, concatenating
// segments in order when the stream is segmented.
func (d *Downloader) fetchStream(ctx context.Context, stream *types.StreamDescriptor, destPath, label string) error {
	urls := stream.URLs
	if len(urls) == 0 {
		if stream.URL == "" {
			return catalog.ErrStreamUnavailable
		}
		urls = []string{stream.URL}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	showProgress := d.settings.ShowProgress && d.interactive()
	var segmentBar *progressbar.ProgressBar
	if showProgress && len(urls) > 1 {
		segmentBar = progressbar.Default(int64(len(urls)), label)
	}

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.fetchSegment(ctx, url, out, label, showProgress && segmentBar == nil); err != nil {
			return err
		}
		if segmentBar != nil {
			segmentBar.Add(1)
		}
	}
	return out.Close()
}

func (d *Downloader) fetchSegment(ctx context.Context, url string, out io.Writer, label string, showBytes bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	writer := out
	if showBytes {
		bar := progressbar.DefaultBytes(resp.ContentLength, label)
		writer = io.MultiWriter(out, bar)
	}
	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// coverFetcher builds the fallback cover fetch callback for the cover
// normalizer, backed by the catalog's image endpoint.
func (d *Downloader) coverFetcher(ctx context.Context, album *types.Album) FetchCoverFunc {
	if album == nil || album.Cover == "" {
		return nil
	}
	return func(destDir string) (string, error) {
		dest := filepath.Join(destDir, "fetched_cover.jpg")
		url := d.catalog.CoverURL(album.Cover, 1280, 1280)
		if err := downloadImage(ctx, d.client, url, dest); err != nil {
			return "", err
		}
		return dest, nil
	}
}
