package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/config"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

func testTrack(id, title string, number int) *types.Track {
	return &types.Track{
		ID:          id,
		Title:       title,
		Artists:     []types.Artist{{Name: "Test Artist"}},
		TrackNumber: number,
	}
}

func quietSettings() *config.Settings {
	s := config.Defaults()
	s.ShowProgress = false
	s.ShowTrackInfo = false
	return s
}

// TestDownloadTrack tests the happy path end to end against a local server
func TestDownloadTrack(t *testing.T) {
	payload := testFLACBytes()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := newFakeCatalog()
	client.streams["t1"] = &types.StreamDescriptor{
		TrackID: "t1",
		URL:     server.URL + "/t1",
		Codec:   "flac",
	}

	d := newTestDownloader(t, client, quietSettings())
	track := testTrack("t1", "Mother", 5)

	outcome, err := d.DownloadTrack(context.Background(), track, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, outcome)

	final := filepath.Join(d.root, "Test Artist", "Unknown Album", "05 - Mother.flac")
	require.FileExists(t, final)
	assert.Equal(t, ContainerFLAC, SniffFile(final))

	// The descriptive tags were written through the pipeline.
	stored, err := ReadTagValues(final, "TITLE", "TIDAL_TRACK_ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mother"}, stored["TITLE"])
	assert.Equal(t, []string{"t1"}, stored["TIDAL_TRACK_ID"])

	// No working directories are left behind.
	entries, err := os.ReadDir(filepath.Dir(final))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestDownloadTrackSkipsExisting tests that a present file downloads nothing
func TestDownloadTrackSkipsExisting(t *testing.T) {
	payload := testFLACBytes()
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newFakeCatalog()
	client.streams["t1"] = &types.StreamDescriptor{
		TrackID: "t1",
		URL:     server.URL + "/t1",
		Codec:   "flac",
	}

	d := newTestDownloader(t, client, quietSettings())
	track := testTrack("t1", "Mother", 5)

	final := filepath.Join(d.root, "Test Artist", "Unknown Album", "05 - Mother.flac")
	require.NoError(t, os.MkdirAll(filepath.Dir(final), 0755))
	require.NoError(t, os.WriteFile(final, payload, 0644))

	outcome, err := d.DownloadTrack(context.Background(), track, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSkipped, outcome)
	assert.Zero(t, atomic.LoadInt32(&gets), "skip check must not download any bytes")
}

// TestDownloadTrackSegmented tests in-order segment concatenation
func TestDownloadTrackSegmented(t *testing.T) {
	payload := testFLACBytes()
	half := len(payload) / 2
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/seg/0":
			w.Write(payload[:half])
		case "/seg/1":
			w.Write(payload[half:])
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newFakeCatalog()
	client.streams["t1"] = &types.StreamDescriptor{
		TrackID: "t1",
		URLs:    []string{server.URL + "/seg/0", server.URL + "/seg/1"},
		Codec:   "flac",
	}

	d := newTestDownloader(t, client, quietSettings())
	outcome, err := d.DownloadTrack(context.Background(), testTrack("t1", "Mother", 5), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, outcome)

	final := filepath.Join(d.root, "Test Artist", "Unknown Album", "05 - Mother.flac")
	got, err := os.ReadFile(final)
	require.NoError(t, err)
	// Tagging appends a Vorbis comment block, so compare the stream marker
	// and audio frames around it.
	assert.Equal(t, payload[:4], got[:4])
}

// TestDownloadTrackResolveFailure tests that a dead stream fails the item
func TestDownloadTrackResolveFailure(t *testing.T) {
	d := newTestDownloader(t, newFakeCatalog(), quietSettings())
	outcome, err := d.DownloadTrack(context.Background(), testTrack("missing", "Gone", 1), nil, nil)
	assert.Error(t, err)
	assert.Equal(t, types.OutcomeFailed, outcome)
}

// TestNormalizeContainerFallback tests degradation when no remux backend
// is available
func TestNormalizeContainerFallback(t *testing.T) {
	dir := t.TempDir()
	mp4 := filepath.Join(dir, "stream.flac")
	require.NoError(t, os.WriteFile(mp4, []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), 0644))

	d := newTestDownloader(t, newFakeCatalog(), quietSettings())
	stream := &types.StreamDescriptor{TrackID: "t1", Codec: "flac"}

	path, decrypted := d.normalizeContainer(context.Background(), filepath.Join(dir, "final.flac"), mp4, stream)
	assert.Equal(t, filepath.Join(dir, "final.m4a"), path)
	assert.Equal(t, mp4, decrypted)
}
