package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings represents the user's persisted preferences. Zero values fall
// back to the defaults applied by Load.
type Settings struct {
	DownloadLocation string `json:"downloadLocation,omitempty"`
	AudioQuality     string `json:"audioQuality"`
	VideoQuality     string `json:"videoQuality"`

	// CheckExist skips a download when the target file already exists with
	// at least the remote size.
	CheckExist bool `json:"checkExist"`
	// MultiThread runs batch downloads on a bounded worker pool instead of
	// sequentially.
	MultiThread bool `json:"multiThread"`
	// Concurrency is the worker pool size used when MultiThread is set.
	Concurrency int `json:"concurrency"`

	SaveCovers        bool `json:"saveCovers"`
	LyricFile         bool `json:"lyricFile"`
	ShowProgress      bool `json:"showProgress"`
	ShowTrackInfo     bool `json:"showTrackInfo"`
	UsePlaylistFolder bool `json:"usePlaylistFolder"`

	// MetadataRefreshDelay paces catalog searches during metadata refresh
	// with a randomized 0.5-5s wait.
	MetadataRefreshDelay bool `json:"metadataRefreshDelay"`

	// CoverMaxPixels bounds the larger dimension of embedded cover art.
	CoverMaxPixels int `json:"coverMaxPixels"`
}

// settingsFilePath returns the path to the settings file
func settingsFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".tidal-dl-settings.json")
}

// Defaults returns the settings applied when no file exists.
func Defaults() *Settings {
	return &Settings{
		AudioQuality:   "HiFi",
		VideoQuality:   "P720",
		CheckExist:     true,
		Concurrency:    5,
		SaveCovers:     true,
		LyricFile:      false,
		ShowProgress:   true,
		ShowTrackInfo:  true,
		CoverMaxPixels: 1400,
	}
}

// Load reads the settings file, falling back to defaults on any error.
func Load() *Settings {
	settings := Defaults()

	data, err := os.ReadFile(settingsFilePath())
	if err != nil {
		return settings
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return Defaults()
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 5
	}
	if settings.CoverMaxPixels <= 0 {
		settings.CoverMaxPixels = 1400
	}
	return settings
}

// Save writes the settings file with indentation for hand editing.
func Save(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsFilePath(), data, 0644)
}
