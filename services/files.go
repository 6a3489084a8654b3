package services

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// FileService discovers downloaded media files on disk and serves their
// metadata to the HTTP layer.
type FileService interface {
	ScanAudioFiles(root string) ([]types.AudioFile, error)
	ValidateFilePath(path string) error
	GetContentType(path string) string
}

type fileService struct{}

// NewFileService creates a new file service
func NewFileService() FileService {
	return &fileService{}
}

var mediaExtensions = map[string]string{
	".flac": "flac",
	".m4a":  "m4a",
	".mp4":  "mp4",
}

// ScanAudioFiles walks root recursively and returns every media file with
// whatever tag metadata could be read from it.
func (s *fileService) ScanAudioFiles(root string) ([]types.AudioFile, error) {
	var files []types.AudioFile

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, not fatal.
			log.Printf("Skipping unreadable path %s: %v", path, err)
			return nil
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		format, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, types.AudioFile{
			Filename: entry.Name(),
			Path:     filepath.ToSlash(rel),
			Size:     info.Size(),
			Format:   format,
			Metadata: readFileMetadata(path),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []types.AudioFile{}, nil
		}
		return nil, err
	}
	return files, nil
}

// readFileMetadata reads basic tag metadata; nil when the file has none.
func readFileMetadata(path string) *types.AudioMetadata {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	trackNumber, _ := meta.Track()
	return &types.AudioMetadata{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		TrackNumber: trackNumber,
	}
}

// ValidateFilePath rejects path components that could escape the download
// root.
func (s *fileService) ValidateFilePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path must not contain '..'")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative")
	}
	return nil
}

// GetContentType returns the MIME type served for a media file.
func (s *fileService) GetContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
