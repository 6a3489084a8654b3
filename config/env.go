package config

import (
	"os"
	"path/filepath"
)

var Env = map[string]string{
	"TIDAL_API_ENDPOINT": os.Getenv("TIDAL_API_ENDPOINT"),
	"TIDAL_ACCESS_TOKEN": os.Getenv("TIDAL_ACCESS_TOKEN"),
	"TIDAL_COUNTRY_CODE": os.Getenv("TIDAL_COUNTRY_CODE"),
	"DOWNLOAD_LOCATION":  os.Getenv("DOWNLOAD_LOCATION"),
}

// GetEndpoint returns the catalog API base URL.
func GetEndpoint() string {
	if endpoint := Env["TIDAL_API_ENDPOINT"]; endpoint != "" {
		return endpoint
	}
	return "https://api.tidalhifi.com/v1"
}

// GetAccessToken returns the pre-issued bearer token for the catalog API.
func GetAccessToken() string {
	return Env["TIDAL_ACCESS_TOKEN"]
}

// GetCountryCode returns the storefront country code sent with catalog calls.
func GetCountryCode() string {
	if cc := Env["TIDAL_COUNTRY_CODE"]; cc != "" {
		return cc
	}
	return "US"
}

// GetDownloadLocation returns the root directory downloads are written to.
func GetDownloadLocation() string {
	if customPath := Env["DOWNLOAD_LOCATION"]; customPath != "" {
		return customPath
	}

	if settings := Load(); settings.DownloadLocation != "" {
		return settings.DownloadLocation
	}

	// Use standard OS-appropriate download location
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if can't get home dir
		return filepath.Join(".", "downloads")
	}

	return filepath.Join(homeDir, "Music", "Tidal")
}
