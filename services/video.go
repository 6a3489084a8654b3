package services

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/schollz/progressbar/v3"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// DownloadVideo downloads a music video: resolve its HLS playlist, pick the
// variant closest to the configured quality, then fetch and concatenate the
// transport stream segments.
func (d *Downloader) DownloadVideo(ctx context.Context, video *types.Video, album *types.Album, playlist *types.Playlist) (types.Outcome, error) {
	stream, err := d.catalog.ResolveVideoStream(ctx, video.ID, d.settings.VideoQuality)
	if err != nil {
		d.printer.Err("%s: %v", video.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	path := VideoPath(d.root, video, album, playlist, d.settings.UsePlaylistFolder)
	if d.settings.CheckExist {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			d.printer.Success("%s (skip:already exists!)", video.DisplayTitle())
			return types.OutcomeSkipped, nil
		}
	}

	segments, err := d.resolveSegments(ctx, stream.URL)
	if err != nil {
		d.printer.Err("%s: %v", video.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}
	if len(segments) == 0 {
		err := fmt.Errorf("playlist has no segments")
		d.printer.Err("%s: %v", video.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.OutcomeFailed, err
	}
	workDir, err := os.MkdirTemp(filepath.Dir(path), ".tidal-dl-")
	if err != nil {
		return types.OutcomeFailed, err
	}
	defer os.RemoveAll(workDir)

	partial := filepath.Join(workDir, "video.part")
	if err := d.fetchSegments(ctx, segments, partial, video.DisplayTitle()); err != nil {
		d.printer.Err("%s: %v", video.DisplayTitle(), err)
		return types.OutcomeFailed, err
	}

	if err := os.Rename(partial, path); err != nil {
		return types.OutcomeFailed, err
	}
	d.printer.Success("%s", video.DisplayTitle())
	return types.OutcomeSuccess, nil
}

// resolveSegments fetches the playlist at playlistURL and returns absolute
// segment URLs. Master playlists are resolved one level down to the variant
// best matching the configured video quality.
func (d *Downloader) resolveSegments(ctx context.Context, playlistURL string) ([]string, error) {
	base, pl, listType, err := d.fetchPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, err
	}

	if listType == m3u8.MASTER {
		master := pl.(*m3u8.MasterPlaylist)
		variant := pickVariant(master.Variants, desiredHeight(d.settings.VideoQuality))
		if variant == nil {
			return nil, fmt.Errorf("master playlist has no variants")
		}
		variantURL, err := resolveURL(base, variant.URI)
		if err != nil {
			return nil, err
		}
		base, pl, listType, err = d.fetchPlaylist(ctx, variantURL)
		if err != nil {
			return nil, err
		}
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	media := pl.(*m3u8.MediaPlaylist)
	var segments []string
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		segURL, err := resolveURL(base, seg.URI)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segURL)
	}
	return segments, nil
}

func (d *Downloader) fetchPlaylist(ctx context.Context, playlistURL string) (string, m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return "", nil, 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, 0, fmt.Errorf("fetch playlist: unexpected status %s", resp.Status)
	}

	pl, listType, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), true)
	if err != nil {
		return "", nil, 0, fmt.Errorf("decode playlist: %w", err)
	}
	return playlistURL, pl, listType, nil
}

// desiredHeight parses a quality label like "P720" into a pixel height.
// Unknown labels place no bound on the variant choice.
func desiredHeight(quality string) int {
	height, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(quality), "P"))
	if err != nil {
		return 0
	}
	return height
}

// pickVariant chooses the highest-bandwidth variant whose height fits the
// bound, falling back to the lowest-bandwidth variant when none fits.
func pickVariant(variants []*m3u8.Variant, maxHeight int) *m3u8.Variant {
	var best, lowest *m3u8.Variant
	for _, v := range variants {
		if v == nil {
			continue
		}
		if lowest == nil || v.Bandwidth < lowest.Bandwidth {
			lowest = v
		}
		if maxHeight > 0 && variantHeight(v) > maxHeight {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return lowest
	}
	return best
}

func variantHeight(v *m3u8.Variant) int {
	parts := strings.SplitN(v.Resolution, "x", 2)
	if len(parts) != 2 {
		return 0
	}
	height, _ := strconv.Atoi(parts[1])
	return height
}

func resolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// fetchSegments downloads every segment in order into destPath.
func (d *Downloader) fetchSegments(ctx context.Context, segments []string, destPath, label string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var bar *progressbar.ProgressBar
	if d.settings.ShowProgress && d.interactive() {
		bar = progressbar.Default(int64(len(segments)), label)
	}
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.fetchSegment(ctx, segment, out, label, false); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return out.Close()
}
