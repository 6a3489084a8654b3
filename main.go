package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
	"github.com/devicelocksmith/Tidal-Media-Downloader/cmd"
	"github.com/devicelocksmith/Tidal-Media-Downloader/config"
	"github.com/devicelocksmith/Tidal-Media-Downloader/services"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

func main() {
	asciiArt := `
 _____ _     _       _           _ _
|_   _(_) __| | __ _| |       __| | |
  | | | |/ _` + "`" + ` |/ _` + "`" + ` | |_____ / _` + "`" + ` | |
  | | | | (_| | (_| | |_____| (_| | |
  |_| |_|\__,_|\__,_|_|      \__,_|_|
`

	var (
		album    string
		track    string
		artist   string
		playlist string
		video    string
		refresh  string
		server   bool
		port     int
	)

	flag.StringVar(&album, "album", "", "Album ID or URL to download")
	flag.StringVar(&track, "track", "", "Track ID or URL to download")
	flag.StringVar(&artist, "artist", "", "Artist ID or URL to download")
	flag.StringVar(&playlist, "playlist", "", "Playlist ID or URL to download")
	flag.StringVar(&video, "video", "", "Video ID or URL to download")
	flag.StringVar(&refresh, "refresh", "", "Refresh catalog metadata of an existing library directory")
	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.Parse()

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(port)
		return
	}

	selected := 0
	for _, v := range []string{album, track, artist, playlist, video, refresh} {
		if v != "" {
			selected++
		}
	}
	if selected == 0 {
		flag.Usage()
		return
	}
	if selected > 1 {
		log.Fatalf("Pick exactly one of `album`, `track`, `artist`, `playlist`, `video` or `refresh`.")
	}

	services.NewPrinter().Info("%s", asciiArt)

	ctx := context.Background()
	settings := config.Load()
	client := catalog.NewTidalClient(config.GetEndpoint(), config.GetAccessToken(), config.GetCountryCode())

	if refresh != "" {
		reconciler := services.NewReconciler(client, settings)
		result, err := reconciler.RefreshDirectory(ctx, refresh)
		if err != nil {
			log.Fatalf("Refresh failed: %v", err)
		}
		log.Printf("Refreshed %d of %d files (%d skipped, %d failed)",
			result.Updated, result.Scanned, result.Skipped, result.Failed)
		return
	}

	downloader := services.NewDownloader(client, settings, config.GetDownloadLocation())

	switch {
	case track != "":
		t, err := client.Track(ctx, parseID(track))
		if err != nil {
			log.Fatalf("Error: %s", err)
		}
		report(downloader.DownloadTracks(ctx, []*types.Track{t}, nil, nil, nil))

	case album != "":
		id := parseID(album)
		a, err := client.Album(ctx, id)
		if err != nil {
			log.Fatalf("Error: %s", err)
		}
		tracks, videos, err := client.AlbumItems(ctx, id)
		if err != nil {
			log.Fatalf("Cannot list album %s: %s", a.Title, err)
		}
		result := downloader.DownloadTracks(ctx, tracks, a, nil, nil)
		merge(&result, downloader.DownloadVideos(ctx, videos, a, nil, nil))
		report(result)

	case artist != "":
		albums, err := client.ArtistAlbums(ctx, parseID(artist))
		if err != nil {
			log.Fatalf("Error: %s", err)
		}
		var result services.BatchResult
		for _, a := range albums {
			tracks, _, err := client.AlbumItems(ctx, a.ID)
			if err != nil {
				log.Printf("Cannot list album %s: %s", a.Title, err)
				continue
			}
			merge(&result, downloader.DownloadTracks(ctx, tracks, a, nil, nil))
		}
		report(result)

	case playlist != "":
		id := parseID(playlist)
		tracks, videos, err := client.PlaylistItems(ctx, id)
		if err != nil {
			log.Fatalf("Error: %s", err)
		}
		pl := &types.Playlist{ID: id, Title: id, NumberOfTracks: len(tracks)}
		result := downloader.DownloadTracks(ctx, tracks, nil, pl, nil)
		merge(&result, downloader.DownloadVideos(ctx, videos, nil, pl, nil))
		report(result)

	case video != "":
		v, err := client.Video(ctx, parseID(video))
		if err != nil {
			log.Fatalf("Error: %s", err)
		}
		if _, err := downloader.DownloadVideo(ctx, v, nil, nil); err != nil {
			log.Fatalf("Cannot download video %s: %s", v.DisplayTitle(), err)
		}
	}
}

// parseID accepts either a bare catalog ID or a browse URL like
// https://tidal.com/browse/track/12345678 and returns the ID.
func parseID(arg string) string {
	arg = strings.TrimRight(strings.TrimSpace(arg), "/")
	if idx := strings.Index(arg, "?"); idx >= 0 {
		arg = arg[:idx]
	}
	if idx := strings.LastIndex(arg, "/"); idx >= 0 {
		arg = arg[idx+1:]
	}
	return arg
}

func merge(into *services.BatchResult, from services.BatchResult) {
	into.Succeeded += from.Succeeded
	into.Skipped += from.Skipped
	into.Failed += from.Failed
	into.Failures = append(into.Failures, from.Failures...)
}

func report(result services.BatchResult) {
	log.Printf("Done: %d downloaded, %d skipped, %d failed",
		result.Succeeded, result.Skipped, result.Failed)
	for _, failure := range result.Failures {
		log.Printf("  failed: %s: %s", failure.Title, failure.Reason)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
