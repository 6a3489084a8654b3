package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// TestWriteAlbumInfo tests the album info sheet layout
func TestWriteAlbumInfo(t *testing.T) {
	dir := t.TempDir()
	album := &types.Album{
		ID:              "a1",
		Title:           "The Wall",
		Artists:         []types.Artist{{Name: "Pink Floyd"}},
		ReleaseDate:     "1979-11-30",
		NumberOfTracks:  3,
		NumberOfVolumes: 2,
		Duration:        4860,
	}
	tracks := []*types.Track{
		{Title: "In the Flesh?", TrackNumber: 1, VolumeNumber: 1},
		{Title: "The Thin Ice", TrackNumber: 2, VolumeNumber: 1},
		{Title: "Hey You", TrackNumber: 1, VolumeNumber: 2},
	}

	require.NoError(t, WriteAlbumInfo(dir, album, tracks))

	data, err := os.ReadFile(filepath.Join(dir, "AlbumInfo.txt"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "[ID]          a1")
	assert.Contains(t, content, "[Title]       The Wall")
	assert.Contains(t, content, "[Artists]     Pink Floyd")
	assert.Contains(t, content, "[SongNum]     3")
	assert.Contains(t, content, "===========CD 1=============")
	assert.Contains(t, content, "===========CD 2=============")
	assert.Contains(t, content, "   1:  In the Flesh?")
	assert.Contains(t, content, "   1:  Hey You")

	// Volume ordering: disc 2 tracks appear after the disc 2 header.
	cd2 := content[strings.Index(content, "CD 2"):]
	assert.Contains(t, cd2, "Hey You")
	assert.NotContains(t, cd2, "The Thin Ice")
}

// TestWriteLyricsFile tests the lyrics sidecar
func TestWriteLyricsFile(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "01 - Song.flac")

	require.NoError(t, WriteLyricsFile(trackPath, "[00:01.00] first line"))
	data, err := os.ReadFile(filepath.Join(dir, "01 - Song.lrc"))
	require.NoError(t, err)
	assert.Equal(t, "[00:01.00] first line", string(data))

	// Empty lyrics write nothing.
	other := filepath.Join(dir, "02 - Other.flac")
	require.NoError(t, WriteLyricsFile(other, "  "))
	_, err = os.Stat(filepath.Join(dir, "02 - Other.lrc"))
	assert.True(t, os.IsNotExist(err))
}
