package services

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
	"github.com/devicelocksmith/Tidal-Media-Downloader/config"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// artistSplit separates multi-artist tag values like "A / B" or "A & B".
var artistSplit = regexp.MustCompile(`\s*[,/&;]\s*`)

// Reconciler refreshes catalog-derived metadata of an existing FLAC library.
// Files are matched back to the catalog by searching for their tagged artist
// and title; only unambiguous matches are touched, and a file already
// stamped with a different provenance track ID is never modified.
type Reconciler struct {
	catalog  catalog.Client
	settings *config.Settings
	printer  *Printer

	// sleep and delay are swappable for tests.
	sleep func(time.Duration)
	delay func() time.Duration

	searched bool
}

// NewReconciler creates a reconciler over the catalog client.
func NewReconciler(client catalog.Client, settings *config.Settings) *Reconciler {
	return &Reconciler{
		catalog:  client,
		settings: settings,
		printer:  &Printer{},
		sleep:    time.Sleep,
		delay: func() time.Duration {
			return time.Duration(500+rand.Intn(4501)) * time.Millisecond
		},
	}
}

// RefreshResult aggregates the outcome of a directory refresh.
type RefreshResult struct {
	Scanned int
	Updated int
	Skipped int
	Failed  int
}

// RefreshDirectory walks root recursively and refreshes every FLAC file
// found. Per-file problems are logged and counted, never fatal to the walk.
func (r *Reconciler) RefreshDirectory(ctx context.Context, root string) (RefreshResult, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(path), ".flac") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return RefreshResult{}, fmt.Errorf("scan library: %w", err)
	}
	sort.Strings(paths)

	result := RefreshResult{Scanned: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		updated, err := r.refreshFile(ctx, path)
		switch {
		case err != nil:
			result.Failed++
			r.printer.Err("%s: %v", filepath.Base(path), err)
		case updated:
			result.Updated++
		default:
			result.Skipped++
		}
	}
	return result, nil
}

// refreshFile matches one file back to the catalog and refreshes its tags.
// It reports whether the file was written.
func (r *Reconciler) refreshFile(ctx context.Context, path string) (bool, error) {
	stored, err := ReadTagValues(path, "TITLE", "ALBUM", "ARTIST", "TIDAL_TRACK_ID")
	if err != nil {
		return false, err
	}

	title := firstValue(stored["TITLE"])
	albumTitle := firstValue(stored["ALBUM"])
	artists := splitArtists(stored["ARTIST"])
	if title == "" || albumTitle == "" || len(artists) == 0 {
		log.Printf("Skipping %s: missing identifying tags", filepath.Base(path))
		return false, nil
	}

	match, err := r.findMatch(ctx, title, albumTitle, artists)
	if err != nil {
		return false, err
	}
	if match == nil {
		log.Printf("No unambiguous catalog match for %s", filepath.Base(path))
		return false, nil
	}

	storedID := firstValue(stored["TIDAL_TRACK_ID"])
	if storedID != "" && storedID != match.ID {
		log.Printf("Skipping %s: already linked to track %s", filepath.Base(path), storedID)
		return false, nil
	}

	track, err := r.catalog.Track(ctx, match.ID)
	if err != nil {
		return false, err
	}

	var tags *TagSet
	if storedID == track.ID {
		// Already linked: only the volatile popularity fields move.
		tags = NewTagSet()
		tags.SetInt("TIDAL_TRACK_POPULARITY", track.Popularity)
		tags.SetInt("RB_RATING", DeriveRating(track.Popularity))
	} else {
		tags = r.fullTags(ctx, track)
	}

	changed, err := ApplyTags(path, tags)
	if err != nil {
		return false, err
	}
	if changed > 0 {
		r.printer.Success("%s (%d tags refreshed)", filepath.Base(path), changed)
	}
	return changed > 0, nil
}

// fullTags assembles the complete descriptive tag set for a newly linked
// file, tolerating missing album or contributor data.
func (r *Reconciler) fullTags(ctx context.Context, track *types.Track) *TagSet {
	var album *types.Album
	if track.Album.ID != "" {
		if a, err := r.catalog.Album(ctx, track.Album.ID); err == nil {
			album = a
		}
	}
	var contributors []types.Contributor
	if c, err := r.catalog.Contributors(ctx, track.ID); err == nil {
		contributors = c
	}
	return BuildTrackTags(track, album, nil, contributors, "")
}

// findMatch searches the catalog and returns the candidate whose normalized
// title, album and artist set all agree with the file's tags.
func (r *Reconciler) findMatch(ctx context.Context, title, albumTitle string, artists []string) (*types.Track, error) {
	r.pace()
	candidates, err := r.catalog.SearchTracks(ctx, artists[0]+" "+title, 5)
	if err != nil {
		return nil, err
	}

	want := normalizeText(title)
	wantAlbum := normalizeText(albumTitle)
	wantArtists := normalizedSet(artists)
	for _, candidate := range candidates {
		if normalizeText(candidate.DisplayTitle()) != want && normalizeText(candidate.Title) != want {
			continue
		}
		if normalizeText(candidate.Album.Title) != wantAlbum {
			continue
		}
		if !sameSet(normalizedSet(candidate.ArtistNames()), wantArtists) {
			continue
		}
		return candidate, nil
	}
	return nil, nil
}

// pace inserts a randomized wait between catalog searches when the refresh
// delay setting is on. The first search goes out immediately.
func (r *Reconciler) pace() {
	if r.settings.MetadataRefreshDelay && r.searched {
		r.sleep(r.delay())
	}
	r.searched = true
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func splitArtists(values []string) []string {
	var artists []string
	for _, value := range values {
		for _, name := range artistSplit.Split(value, -1) {
			if name = strings.TrimSpace(name); name != "" {
				artists = append(artists, name)
			}
		}
	}
	return artists
}

// normalizeText collapses whitespace and case for comparisons.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if normalized := normalizeText(name); normalized != "" {
			set[normalized] = true
		}
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if !b[name] {
			return false
		}
	}
	return true
}
