package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/floostack/transcoder/ffmpeg"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// CoverArt is artwork lifted out of a container before remuxing. Stream-copy
// remux does not preserve embedded pictures, so the orchestrator re-attaches
// it to the FLAC output afterwards.
type CoverArt struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Remuxer repackages FLAC essence out of MP4-family containers without
// re-encoding. Backends are tried in priority order; when all fail the item
// keeps its original container.
type Remuxer struct {
	caps *Capabilities
}

// NewRemuxer creates a remuxer sharing the process capability set.
func NewRemuxer(caps *Capabilities) *Remuxer {
	return &Remuxer{caps: caps}
}

// NeedsRemux applies the decision rule: the desired target is .flac, the
// downloaded container is not already native FLAC, and the stream's declared
// codec is FLAC essence.
func (r *Remuxer) NeedsRemux(path string, stream *types.StreamDescriptor) bool {
	if stream == nil || !stream.FlacEssence() {
		return false
	}
	return SniffFile(path) != ContainerFLAC
}

// ExtractEmbeddedCover returns the front cover embedded in an MP4 container,
// or nil when there is none.
func ExtractEmbeddedCover(path string) *CoverArt {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil
	}

	art := &CoverArt{Data: pic.Data, MIME: pic.MIMEType}
	if art.MIME == "" {
		art.MIME = "image/jpeg"
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(pic.Data)); err == nil {
		art.Width = cfg.Width
		art.Height = cfg.Height
	}
	return art
}

// ReattachCover inserts art as the sole front-cover picture of a FLAC file.
func ReattachCover(path string, art *CoverArt) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = kept

	pic := &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        art.MIME,
		Description: "Front Cover",
		Width:       uint32(art.Width),
		Height:      uint32(art.Height),
		ImageData:   art.Data,
	}
	block := pic.Marshal()
	f.Meta = append(f.Meta, &block)
	return f.Save(path)
}

type remuxBackend struct {
	name string
	run  func(ctx context.Context, src, dst string) error
}

func (r *Remuxer) backends() []remuxBackend {
	return []remuxBackend{
		{name: "transcoder", run: r.runTranscoder},
		{name: "ffmpeg", run: r.runFFmpegExec},
	}
}

// runTranscoder is the in-process backend: a library-managed ffmpeg pipeline
// copying the audio stream into a FLAC-muxed output.
func (r *Remuxer) runTranscoder(ctx context.Context, src, dst string) error {
	if !r.caps.HasFFmpeg() || !r.caps.HasFFprobe() {
		return fmt.Errorf("transcoder backend unavailable")
	}

	codec := "copy"
	format := "flac"
	overwrite := true
	skipVideo := true
	opts := ffmpeg.Options{
		AudioCodec:   &codec,
		OutputFormat: &format,
		Overwrite:    &overwrite,
		SkipVideo:    &skipVideo,
	}

	progress, err := ffmpeg.
		New(&ffmpeg.Config{
			FfmpegBinPath:   "ffmpeg",
			FfprobeBinPath:  "ffprobe",
			ProgressEnabled: true,
		}).
		Input(src).
		Output(dst).
		WithContext(&ctx).
		Start(opts)
	if err != nil {
		return err
	}
	for range progress {
	}
	return nil
}

// runFFmpegExec is the external-process backend, restricted to the first
// audio stream with stream-copy semantics.
func (r *Remuxer) runFFmpegExec(ctx context.Context, src, dst string) error {
	if !r.caps.HasFFmpeg() {
		return fmt.Errorf("ffmpeg backend unavailable")
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-v", "error",
		"-i", src,
		"-map", "0:a:0",
		"-c:a", "copy",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Remux produces a native FLAC file next to src and returns its path, plus
// any cover art extracted from the source container. On failure it returns
// ErrRemuxUnavailable and the source is left untouched for the fallback
// path.
func (r *Remuxer) Remux(ctx context.Context, src string) (string, *CoverArt, error) {
	cover := ExtractEmbeddedCover(src)
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".remux.flac"

	var lastErr error
	for _, backend := range r.backends() {
		os.Remove(dst)
		if err := backend.run(ctx, src, dst); err != nil {
			lastErr = err
			continue
		}
		if info, err := os.Stat(dst); err != nil || info.Size() == 0 || SniffFile(dst) != ContainerFLAC {
			lastErr = fmt.Errorf("%s produced no usable FLAC output", backend.name)
			continue
		}
		log.Printf("Extracted FLAC stream from MP4 container via %s: %s", backend.name, filepath.Base(src))
		return dst, cover, nil
	}

	os.Remove(dst)
	if lastErr == nil {
		lastErr = ErrRemuxUnavailable
	}
	return "", cover, fmt.Errorf("%w: %v", ErrRemuxUnavailable, lastErr)
}
