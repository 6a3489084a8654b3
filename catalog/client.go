// Package catalog talks to the remote catalog service: it resolves IDs to
// metadata and signed stream URLs. The download pipeline depends only on the
// Client interface; the Tidal HTTP implementation lives in tidal.go.
package catalog

import (
	"context"
	"errors"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

var (
	// ErrNotFound is returned when the catalog has no item for the ID.
	ErrNotFound = errors.New("catalog: item not found")
	// ErrStreamUnavailable is returned when a stream cannot be resolved for
	// the requested quality, or the issued descriptor has expired.
	ErrStreamUnavailable = errors.New("catalog: stream unavailable")
)

// Client is the catalog collaborator consumed by the download pipeline.
// Implementations must be safe for concurrent use; the batch scheduler
// shares one client across all workers.
type Client interface {
	Track(ctx context.Context, id string) (*types.Track, error)
	Video(ctx context.Context, id string) (*types.Video, error)
	Album(ctx context.Context, id string) (*types.Album, error)
	AlbumItems(ctx context.Context, albumID string) ([]*types.Track, []*types.Video, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]*types.Track, []*types.Video, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]*types.Album, error)

	// ResolveStream resolves a track to a signed, possibly expiring stream
	// descriptor for one download attempt.
	ResolveStream(ctx context.Context, trackID, quality string) (*types.StreamDescriptor, error)
	// ResolveVideoStream resolves a video to its HLS playlist URL.
	ResolveVideoStream(ctx context.Context, videoID, quality string) (*types.StreamDescriptor, error)

	Contributors(ctx context.Context, trackID string) ([]types.Contributor, error)
	Lyrics(ctx context.Context, trackID string) (string, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]*types.Track, error)

	// CoverURL renders the image endpoint URL for a cover ID at the given
	// pixel dimensions.
	CoverURL(coverID string, width, height int) string
}
