package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults tests the defaults applied without a settings file
func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	settings := Load()
	assert.Equal(t, "HiFi", settings.AudioQuality)
	assert.Equal(t, "P720", settings.VideoQuality)
	assert.True(t, settings.CheckExist)
	assert.False(t, settings.MultiThread)
	assert.Equal(t, 5, settings.Concurrency)
	assert.Equal(t, 1400, settings.CoverMaxPixels)
}

// TestSaveAndLoad tests the settings file round trip
func TestSaveAndLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	settings := Defaults()
	settings.DownloadLocation = "/music"
	settings.MultiThread = true
	settings.Concurrency = 3
	settings.MetadataRefreshDelay = true
	require.NoError(t, Save(settings))

	require.FileExists(t, filepath.Join(home, ".tidal-dl-settings.json"))

	loaded := Load()
	assert.Equal(t, "/music", loaded.DownloadLocation)
	assert.True(t, loaded.MultiThread)
	assert.Equal(t, 3, loaded.Concurrency)
	assert.True(t, loaded.MetadataRefreshDelay)
}

// TestLoadCorruptFile tests fallback on a broken settings file
func TestLoadCorruptFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".tidal-dl-settings.json"), []byte("{broken"), 0644))

	settings := Load()
	assert.Equal(t, "HiFi", settings.AudioQuality)
	assert.Equal(t, 5, settings.Concurrency)
}

// TestLoadClampsInvalidValues tests correction of nonsense values
func TestLoadClampsInvalidValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".tidal-dl-settings.json"),
		[]byte(`{"audioQuality": "HiFi", "concurrency": -2, "coverMaxPixels": 0}`), 0644))

	settings := Load()
	assert.Equal(t, 5, settings.Concurrency)
	assert.Equal(t, 1400, settings.CoverMaxPixels)
}
