package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// TestDownloadTracksSequential tests a sequential batch with one failure
func TestDownloadTracksSequential(t *testing.T) {
	payload := testFLACBytes()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := newFakeCatalog()
	var tracks []*types.Track
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("t%d", i)
		tracks = append(tracks, testTrack(id, fmt.Sprintf("Track %d", i), i))
		if i != 3 {
			// Track 3 has no resolvable stream.
			client.streams[id] = &types.StreamDescriptor{
				TrackID: id,
				URL:     server.URL + "/" + id,
				Codec:   "flac",
			}
		}
	}

	d := newTestDownloader(t, client, quietSettings())

	var progressCalls []int
	result := d.DownloadTracks(context.Background(), tracks, nil, nil, func(completed, total int) {
		assert.Equal(t, 5, total)
		progressCalls = append(progressCalls, completed)
	})

	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Track 3", result.Failures[0].Title)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progressCalls)
}

// TestDownloadTracksConcurrent tests the bounded worker pool
func TestDownloadTracksConcurrent(t *testing.T) {
	payload := testFLACBytes()

	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.Write(payload)
	}))
	defer server.Close()

	client := newFakeCatalog()
	var tracks []*types.Track
	for i := 1; i <= 20; i++ {
		id := fmt.Sprintf("t%d", i)
		tracks = append(tracks, testTrack(id, fmt.Sprintf("Track %d", i), i))
		client.streams[id] = &types.StreamDescriptor{
			TrackID: id,
			URL:     server.URL + "/" + id,
			Codec:   "flac",
		}
	}

	settings := quietSettings()
	settings.MultiThread = true
	settings.Concurrency = 5
	d := newTestDownloader(t, client, settings)

	var mu sync.Mutex
	var completed []int
	result := d.DownloadTracks(context.Background(), tracks, nil, nil, func(done, total int) {
		mu.Lock()
		completed = append(completed, done)
		mu.Unlock()
	})

	assert.Equal(t, 20, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, completed, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5), "worker pool must be bounded")
}

// TestDownloadTracksPlaylistNumbering tests playlist position assignment
func TestDownloadTracksPlaylistNumbering(t *testing.T) {
	payload := testFLACBytes()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := newFakeCatalog()
	tracks := []*types.Track{
		testTrack("a", "First", 7),
		testTrack("b", "Second", 2),
	}
	for _, track := range tracks {
		client.streams[track.ID] = &types.StreamDescriptor{
			TrackID: track.ID,
			URL:     server.URL + "/" + track.ID,
			Codec:   "flac",
		}
	}

	settings := quietSettings()
	settings.UsePlaylistFolder = true
	d := newTestDownloader(t, client, settings)

	playlist := &types.Playlist{ID: "p1", Title: "Mix", NumberOfTracks: 2}
	result := d.DownloadTracks(context.Background(), tracks, nil, playlist, nil)
	assert.Equal(t, 2, result.Succeeded)

	assert.Equal(t, 1, tracks[0].TrackNumberOnPlaylist)
	assert.Equal(t, 2, tracks[1].TrackNumberOnPlaylist)
	assert.FileExists(t, TrackPath(d.root, tracks[0], nil, playlist, true, ".flac"))
	assert.FileExists(t, TrackPath(d.root, tracks[1], nil, playlist, true, ".flac"))
}
