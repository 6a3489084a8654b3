package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

const (
	coverURLFormat = "https://resources.tidal.com/images/%s/%dx%d.jpg"
	pageSize       = 100
	maxAttempts    = 3
	rateLimitWait  = 20 * time.Second
)

// TidalClient is the HTTP implementation of Client backed by the Tidal API.
// It expects a pre-issued bearer token; the login flow is out of scope.
type TidalClient struct {
	endpoint    string
	accessToken string
	countryCode string
	httpClient  *http.Client

	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(time.Duration)
}

// NewTidalClient creates a catalog client for the given API endpoint.
func NewTidalClient(endpoint, accessToken, countryCode string) *TidalClient {
	return &TidalClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		accessToken: accessToken,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		sleep:       time.Sleep,
	}
}

// get performs an authenticated GET and returns the response body. A 429
// answer waits and retries; the original client does the same 20s countdown.
func (c *TidalClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("countryCode", c.countryCode)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("catalog: too many requests for %s", path)
			c.sleep(rateLimitWait)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("catalog: GET %s: status %d: %s", path, resp.StatusCode, gjson.GetBytes(body, "userMessage").String())
		}
		return body, nil
	}
	return nil, lastErr
}

func parseArtists(result gjson.Result) []types.Artist {
	var artists []types.Artist
	for _, a := range result.Array() {
		artists = append(artists, types.Artist{
			ID:   a.Get("id").String(),
			Name: a.Get("name").String(),
		})
	}
	return artists
}

func parseTrack(item gjson.Result) *types.Track {
	return &types.Track{
		ID:           item.Get("id").String(),
		Title:        item.Get("title").String(),
		Version:      item.Get("version").String(),
		Artists:      parseArtists(item.Get("artists")),
		Album:        types.AlbumRef{ID: item.Get("album.id").String(), Title: item.Get("album.title").String()},
		TrackNumber:  int(item.Get("trackNumber").Int()),
		VolumeNumber: int(item.Get("volumeNumber").Int()),
		ISRC:         item.Get("isrc").String(),
		Copyright:    item.Get("copyright").String(),
		Explicit:     item.Get("explicit").Bool(),
		Popularity:   int(item.Get("popularity").Int()),
		Duration:     int(item.Get("duration").Int()),
		ReplayGain:   item.Get("replayGain").Float(),
		Peak:         item.Get("peak").Float(),
	}
}

func parseVideo(item gjson.Result) *types.Video {
	return &types.Video{
		ID:           item.Get("id").String(),
		Title:        item.Get("title").String(),
		Version:      item.Get("version").String(),
		Artists:      parseArtists(item.Get("artists")),
		Album:        types.AlbumRef{ID: item.Get("album.id").String(), Title: item.Get("album.title").String()},
		TrackNumber:  int(item.Get("trackNumber").Int()),
		VolumeNumber: int(item.Get("volumeNumber").Int()),
		Explicit:     item.Get("explicit").Bool(),
		Duration:     int(item.Get("duration").Int()),
	}
}

func parseAlbum(item gjson.Result) *types.Album {
	return &types.Album{
		ID:              item.Get("id").String(),
		Title:           item.Get("title").String(),
		Artists:         parseArtists(item.Get("artists")),
		ReleaseDate:     item.Get("releaseDate").String(),
		Cover:           item.Get("cover").String(),
		NumberOfTracks:  int(item.Get("numberOfTracks").Int()),
		NumberOfVolumes: int(item.Get("numberOfVolumes").Int()),
		Duration:        int(item.Get("duration").Int()),
		Explicit:        item.Get("explicit").Bool(),
	}
}

// Track fetches full track metadata.
func (c *TidalClient) Track(ctx context.Context, id string) (*types.Track, error) {
	body, err := c.get(ctx, "tracks/"+id, nil)
	if err != nil {
		return nil, err
	}
	return parseTrack(gjson.ParseBytes(body)), nil
}

// Video fetches full video metadata.
func (c *TidalClient) Video(ctx context.Context, id string) (*types.Video, error) {
	body, err := c.get(ctx, "videos/"+id, nil)
	if err != nil {
		return nil, err
	}
	return parseVideo(gjson.ParseBytes(body)), nil
}

// Album fetches full album metadata.
func (c *TidalClient) Album(ctx context.Context, id string) (*types.Album, error) {
	body, err := c.get(ctx, "albums/"+id, nil)
	if err != nil {
		return nil, err
	}
	return parseAlbum(gjson.ParseBytes(body)), nil
}

// items pages through a tracks+videos item listing endpoint.
func (c *TidalClient) items(ctx context.Context, path string) ([]*types.Track, []*types.Video, error) {
	var tracks []*types.Track
	var videos []*types.Video

	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(pageSize))
		params.Set("offset", fmt.Sprint(offset))

		body, err := c.get(ctx, path, params)
		if err != nil {
			return nil, nil, err
		}

		items := gjson.GetBytes(body, "items").Array()
		for _, entry := range items {
			item := entry
			// Playlist item listings wrap each entry with a type marker.
			if entry.Get("item").Exists() {
				item = entry.Get("item")
			}
			switch entry.Get("type").String() {
			case "video":
				videos = append(videos, parseVideo(item))
			default:
				if item.Get("isrc").Exists() || entry.Get("type").String() == "track" || !entry.Get("type").Exists() {
					tracks = append(tracks, parseTrack(item))
				}
			}
		}

		total := int(gjson.GetBytes(body, "totalNumberOfItems").Int())
		if offset+pageSize >= total || len(items) == 0 {
			break
		}
	}
	return tracks, videos, nil
}

// AlbumItems lists an album's tracks and videos in album order.
func (c *TidalClient) AlbumItems(ctx context.Context, albumID string) ([]*types.Track, []*types.Video, error) {
	return c.items(ctx, "albums/"+albumID+"/items")
}

// PlaylistItems lists a playlist's tracks and videos in playlist order.
func (c *TidalClient) PlaylistItems(ctx context.Context, playlistID string) ([]*types.Track, []*types.Video, error) {
	return c.items(ctx, "playlists/"+playlistID+"/items")
}

// ArtistAlbums lists an artist's albums.
func (c *TidalClient) ArtistAlbums(ctx context.Context, artistID string) ([]*types.Album, error) {
	var albums []*types.Album
	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(pageSize))
		params.Set("offset", fmt.Sprint(offset))

		body, err := c.get(ctx, "artists/"+artistID+"/albums", params)
		if err != nil {
			return nil, err
		}
		items := gjson.GetBytes(body, "items").Array()
		for _, item := range items {
			albums = append(albums, parseAlbum(item))
		}
		total := int(gjson.GetBytes(body, "totalNumberOfItems").Int())
		if offset+pageSize >= total || len(items) == 0 {
			break
		}
	}
	return albums, nil
}

// ResolveStream resolves a track's playback info into a StreamDescriptor.
// The manifest arrives base64-encoded inside the playback info payload.
func (c *TidalClient) ResolveStream(ctx context.Context, trackID, quality string) (*types.StreamDescriptor, error) {
	params := url.Values{}
	params.Set("audioquality", quality)
	params.Set("playbackmode", "STREAM")
	params.Set("assetpresentation", "FULL")

	body, err := c.get(ctx, "tracks/"+trackID+"/playbackinfopostpaywall", params)
	if err != nil {
		return nil, err
	}

	manifestRaw, err := base64.StdEncoding.DecodeString(gjson.GetBytes(body, "manifest").String())
	if err != nil {
		return nil, fmt.Errorf("%w: manifest decode: %v", ErrStreamUnavailable, err)
	}
	manifest := gjson.ParseBytes(manifestRaw)

	var urls []string
	for _, u := range manifest.Get("urls").Array() {
		urls = append(urls, u.String())
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: track %s has no stream URLs", ErrStreamUnavailable, trackID)
	}

	return &types.StreamDescriptor{
		TrackID:       trackID,
		URL:           urls[0],
		URLs:          urls,
		EncryptionKey: manifest.Get("keyId").String(),
		Codec:         manifest.Get("codecs").String(),
		SoundQuality:  gjson.GetBytes(body, "audioQuality").String(),
		BitDepth:      int(gjson.GetBytes(body, "bitDepth").Int()),
		SampleRate:    int(gjson.GetBytes(body, "sampleRate").Int()),
	}, nil
}

// ResolveVideoStream resolves a video's playback info; the descriptor URL is
// an HLS playlist.
func (c *TidalClient) ResolveVideoStream(ctx context.Context, videoID, quality string) (*types.StreamDescriptor, error) {
	params := url.Values{}
	params.Set("videoquality", quality)
	params.Set("playbackmode", "STREAM")
	params.Set("assetpresentation", "FULL")

	body, err := c.get(ctx, "videos/"+videoID+"/playbackinfopostpaywall", params)
	if err != nil {
		return nil, err
	}

	manifestRaw, err := base64.StdEncoding.DecodeString(gjson.GetBytes(body, "manifest").String())
	if err != nil {
		return nil, fmt.Errorf("%w: manifest decode: %v", ErrStreamUnavailable, err)
	}
	streamURL := gjson.GetBytes(manifestRaw, "urls.0").String()
	if streamURL == "" {
		return nil, fmt.Errorf("%w: video %s has no playlist URL", ErrStreamUnavailable, videoID)
	}

	return &types.StreamDescriptor{
		TrackID: videoID,
		URL:     streamURL,
		Codec:   gjson.GetBytes(manifestRaw, "codecs").String(),
	}, nil
}

// Contributors fetches the credited contributor list for a track.
func (c *TidalClient) Contributors(ctx context.Context, trackID string) ([]types.Contributor, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(pageSize))

	body, err := c.get(ctx, "tracks/"+trackID+"/contributors", params)
	if err != nil {
		return nil, err
	}

	var contributors []types.Contributor
	for _, item := range gjson.GetBytes(body, "items").Array() {
		contributors = append(contributors, types.Contributor{
			Name: item.Get("name").String(),
			Role: item.Get("role").String(),
		})
	}
	return contributors, nil
}

// Lyrics fetches the timed lyrics text for a track, or "" when none exist.
func (c *TidalClient) Lyrics(ctx context.Context, trackID string) (string, error) {
	body, err := c.get(ctx, "tracks/"+trackID+"/lyrics", nil)
	if err != nil {
		return "", err
	}
	subtitles := gjson.GetBytes(body, "subtitles").String()
	if subtitles == "" {
		subtitles = gjson.GetBytes(body, "lyrics").String()
	}
	return subtitles, nil
}

// SearchTracks runs a track search and returns up to limit candidates.
func (c *TidalClient) SearchTracks(ctx context.Context, query string, limit int) ([]*types.Track, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("types", "TRACKS")
	params.Set("limit", fmt.Sprint(limit))

	body, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	var tracks []*types.Track
	for _, item := range gjson.GetBytes(body, "tracks.items").Array() {
		tracks = append(tracks, parseTrack(item))
	}
	return tracks, nil
}

// CoverURL renders the image endpoint URL for a cover ID. Cover IDs use
// dashes where the image host expects path separators.
func (c *TidalClient) CoverURL(coverID string, width, height int) string {
	return fmt.Sprintf(coverURLFormat, strings.ReplaceAll(coverID, "-", "/"), width, height)
}
