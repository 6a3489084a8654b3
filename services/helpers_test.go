package services

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
	"github.com/devicelocksmith/Tidal-Media-Downloader/config"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// writeTestFLAC writes a minimal valid FLAC file: the stream marker followed
// by an empty STREAMINFO block flagged as the last metadata block, then the
// audio frame sync code.
func writeTestFLAC(t *testing.T, dir, name string) string {
	t.Helper()
	data := append([]byte("fLaC"), 0x80, 0x00, 0x00, 0x22)
	data = append(data, make([]byte, 34)...)
	data = append(data, 0xFF, 0xF8)
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// testFLACBytes returns the bytes written by writeTestFLAC.
func testFLACBytes() []byte {
	data := append([]byte("fLaC"), 0x80, 0x00, 0x00, 0x22)
	data = append(data, make([]byte, 34)...)
	return append(data, 0xFF, 0xF8)
}

// fakeCatalog is a canned catalog.Client for pipeline tests.
type fakeCatalog struct {
	tracks       map[string]*types.Track
	albums       map[string]*types.Album
	streams      map[string]*types.StreamDescriptor
	searchResult []*types.Track
	searchCalls  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks:  make(map[string]*types.Track),
		albums:  make(map[string]*types.Album),
		streams: make(map[string]*types.StreamDescriptor),
	}
}

func (f *fakeCatalog) Track(_ context.Context, id string) (*types.Track, error) {
	if track, ok := f.tracks[id]; ok {
		return track, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) Video(_ context.Context, id string) (*types.Video, error) {
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) Album(_ context.Context, id string) (*types.Album, error) {
	if album, ok := f.albums[id]; ok {
		return album, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) AlbumItems(_ context.Context, _ string) ([]*types.Track, []*types.Video, error) {
	return nil, nil, catalog.ErrNotFound
}

func (f *fakeCatalog) PlaylistItems(_ context.Context, _ string) ([]*types.Track, []*types.Video, error) {
	return nil, nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ArtistAlbums(_ context.Context, _ string) ([]*types.Album, error) {
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ResolveStream(_ context.Context, trackID, _ string) (*types.StreamDescriptor, error) {
	if stream, ok := f.streams[trackID]; ok {
		return stream, nil
	}
	return nil, catalog.ErrStreamUnavailable
}

func (f *fakeCatalog) ResolveVideoStream(_ context.Context, _, _ string) (*types.StreamDescriptor, error) {
	return nil, catalog.ErrStreamUnavailable
}

func (f *fakeCatalog) Contributors(_ context.Context, _ string) ([]types.Contributor, error) {
	return nil, nil
}

func (f *fakeCatalog) Lyrics(_ context.Context, _ string) (string, error) {
	return "", catalog.ErrNotFound
}

func (f *fakeCatalog) SearchTracks(_ context.Context, _ string, _ int) ([]*types.Track, error) {
	f.searchCalls++
	return f.searchResult, nil
}

func (f *fakeCatalog) CoverURL(_ string, _, _ int) string { return "" }

// newTestDownloader builds a downloader with no external tools available,
// rooted at a fresh temp directory.
func newTestDownloader(t *testing.T, client catalog.Client, settings *config.Settings) *Downloader {
	t.Helper()
	caps := NewCapabilities(false, false, false)
	return &Downloader{
		catalog:  client,
		settings: settings,
		printer:  &Printer{Quiet: true},
		caps:     caps,
		remuxer:  NewRemuxer(caps),
		cover:    NewCoverNormalizer(caps),
		root:     t.TempDir(),
		client:   &http.Client{},
	}
}
