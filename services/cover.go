package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
)

// coverCandidates are the sibling file names probed when a FLAC has no
// embedded artwork, in priority order.
var coverCandidates = []string{
	"cover.jpg", "folder.jpg", "front.jpg",
	"Cover.jpg", "Folder.jpg", "Front.jpg",
	"cover.jpeg", "folder.jpeg", "front.jpeg",
	"cover.png", "folder.png", "front.png",
}

const jpegQuality = 85

// FetchCoverFunc downloads fallback artwork into destDir and returns the
// file path. The orchestrator injects one backed by the catalog's cover
// endpoint.
type FetchCoverFunc func(destDir string) (string, error)

// CommandRunner abstracts external tool invocation so tests can fake
// metaflac and ffmpeg.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// CoverNormalizer ensures a FLAC file carries a single baseline JPEG front
// cover no larger than MaxPixels on its longer side. Art is sourced from the
// file itself, a sibling folder image, or a remote fetch callback, then
// re-encoded through a backend chain and embedded with metaflac.
type CoverNormalizer struct {
	caps   *Capabilities
	runner CommandRunner
	// MaxPixels bounds the larger dimension of the embedded JPEG.
	MaxPixels int
}

// NewCoverNormalizer creates a normalizer with the default 1400px bound.
func NewCoverNormalizer(caps *Capabilities) *CoverNormalizer {
	return &CoverNormalizer{caps: caps, runner: execRunner{}, MaxPixels: 1400}
}

// WithRunner swaps the external tool runner; used by tests.
func (n *CoverNormalizer) WithRunner(r CommandRunner) *CoverNormalizer {
	n.runner = r
	return n
}

type pictureBlock struct {
	frontCover bool
	mime       string
	width      int
	height     int
}

var (
	reType3 = regexp.MustCompile(`(?m)^\s*type:\s+3\b`)
	reMIME  = regexp.MustCompile(`(?m)^\s*MIME type:\s*(\S+)`)
	reDim   = regexp.MustCompile(`(?m)^\s*(width|height):\s*(\d+)`)
)

// listPictureBlocks parses `metaflac --list --block-type=PICTURE` output.
func (n *CoverNormalizer) listPictureBlocks(ctx context.Context, flacPath string) []pictureBlock {
	out, err := n.runner.Run(ctx, "metaflac", "--list", "--block-type=PICTURE", flacPath)
	if err != nil {
		return nil
	}

	var blocks []pictureBlock
	for _, section := range strings.Split(string(out), "METADATA block #") {
		if !strings.Contains(section, "(PICTURE)") {
			continue
		}
		block := pictureBlock{frontCover: reType3.MatchString(section)}
		if m := reMIME.FindStringSubmatch(section); m != nil {
			block.mime = strings.ToLower(m[1])
		}
		for _, m := range reDim.FindAllStringSubmatch(section, -1) {
			v, _ := strconv.Atoi(m[2])
			if m[1] == "width" {
				block.width = v
			} else {
				block.height = v
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// isAlreadyCompliant reports whether the file carries exactly one picture
// block that is a baseline-size front-cover JPEG.
func (n *CoverNormalizer) isAlreadyCompliant(blocks []pictureBlock) bool {
	if len(blocks) != 1 {
		return false
	}
	b := blocks[0]
	if !b.frontCover || b.mime != "image/jpeg" {
		return false
	}
	if b.width == 0 || b.height == 0 {
		return false
	}
	return max(b.width, b.height) <= n.MaxPixels
}

func hasFrontCover(blocks []pictureBlock) bool {
	for _, b := range blocks {
		if b.frontCover {
			return true
		}
	}
	return false
}

// exportExistingPicture exports the embedded picture to destFile.
func (n *CoverNormalizer) exportExistingPicture(ctx context.Context, flacPath, destFile string) bool {
	if _, err := n.runner.Run(ctx, "metaflac", "--export-picture-to="+destFile, flacPath); err != nil {
		return false
	}
	info, err := os.Stat(destFile)
	return err == nil && info.Size() > 0
}

// findFolderCover looks for a sibling cover image file.
func findFolderCover(dir string) string {
	for _, name := range coverCandidates {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return candidate
		}
	}
	return ""
}

// reencodeInProcess decodes the source image, scales it so the larger
// dimension fits MaxPixels, flattens to 3-channel color and writes a
// baseline JPEG. The stdlib encoder only emits baseline scans.
func (n *CoverNormalizer) reencodeInProcess(_ context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	img = resize.Thumbnail(uint(n.MaxPixels), uint(n.MaxPixels), img, resize.Lanczos3)

	rgb := image.NewRGBA(img.Bounds())
	draw.Draw(rgb, rgb.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, img.Bounds().Min, draw.Over)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := jpeg.Encode(out, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return err
	}
	return out.Close()
}

// reencodeFFmpeg is the external re-encode backend.
func (n *CoverNormalizer) reencodeFFmpeg(ctx context.Context, src, dst string) error {
	if !n.caps.HasFFmpeg() {
		return fmt.Errorf("ffmpeg backend unavailable")
	}
	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", n.MaxPixels, n.MaxPixels)
	_, err := n.runner.Run(ctx, "ffmpeg",
		"-y", "-v", "error",
		"-i", src,
		"-vf", scale,
		"-q:v", "3",
		"-pix_fmt", "yuvj420p",
		dst,
	)
	return err
}

type reencodeBackend struct {
	name string
	run  func(ctx context.Context, src, dst string) error
}

// reencodeToBaselineJPEG runs the backend chain until one produces output.
func (n *CoverNormalizer) reencodeToBaselineJPEG(ctx context.Context, src, dst string) (string, error) {
	backends := []reencodeBackend{
		{name: "image", run: n.reencodeInProcess},
		{name: "ffmpeg", run: n.reencodeFFmpeg},
	}

	var lastErr error
	for _, backend := range backends {
		if err := backend.run(ctx, src, dst); err != nil {
			lastErr = err
			continue
		}
		if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
			return backend.name, nil
		}
		lastErr = fmt.Errorf("%s produced no output", backend.name)
	}
	return "", lastErr
}

// importFrontCover removes all picture blocks and imports the baseline JPEG
// as the sole front cover.
func (n *CoverNormalizer) importFrontCover(ctx context.Context, flacPath, jpegPath string) error {
	if _, err := n.runner.Run(ctx, "metaflac", "--remove", "--block-type=PICTURE", flacPath); err != nil {
		return err
	}
	spec := fmt.Sprintf("3|image/jpeg|||%s", jpegPath)
	_, err := n.runner.Run(ctx, "metaflac", "--import-picture-from="+spec, flacPath)
	return err
}

// Ensure normalizes the cover art of flacPath. It reports success or failure
// with a human-readable status; failures are never fatal to the enclosing
// download.
func (n *CoverNormalizer) Ensure(ctx context.Context, flacPath string, fetch FetchCoverFunc) (bool, string) {
	if !strings.EqualFold(filepath.Ext(flacPath), ".flac") {
		return false, "target is not a FLAC file"
	}
	if _, err := os.Stat(flacPath); err != nil {
		return false, "target is not a FLAC file"
	}
	if !n.caps.HasMetaflac() {
		return false, ErrCoverToolsUnavailable.Error()
	}

	blocks := n.listPictureBlocks(ctx, flacPath)
	if n.isAlreadyCompliant(blocks) {
		return true, "cover art already meets baseline JPEG requirements"
	}
	// Any existing front cover is left alone, compliant or not. Forcing a
	// re-encode of legacy covers would be a behavior change for every
	// previously downloaded file.
	if hasFrontCover(blocks) {
		return true, "cover art already present in FLAC metadata"
	}

	tmpDir, err := os.MkdirTemp("", "coverfix-")
	if err != nil {
		return false, "unable to create temporary directory"
	}
	defer os.RemoveAll(tmpDir)

	source := filepath.Join(tmpDir, "extracted_art")
	baseline := filepath.Join(tmpDir, "cover.jpg")

	haveArt := n.exportExistingPicture(ctx, flacPath, source)
	if !haveArt {
		if folderCover := findFolderCover(filepath.Dir(flacPath)); folderCover != "" {
			source = folderCover
			haveArt = true
		}
	}
	if !haveArt && fetch != nil {
		fetched, err := fetch(tmpDir)
		if err != nil {
			log.Printf("Failed to fetch fallback cover art for %s: %v", flacPath, err)
		} else if info, statErr := os.Stat(fetched); statErr == nil && info.Size() > 0 {
			source = fetched
			haveArt = true
		}
	}
	if !haveArt {
		return false, ErrNoCoverArt.Error()
	}

	backend, err := n.reencodeToBaselineJPEG(ctx, source, baseline)
	if err != nil {
		return false, fmt.Sprintf("failed to re-encode cover art (%v)", err)
	}

	if err := n.importFrontCover(ctx, flacPath, baseline); err != nil {
		return false, fmt.Sprintf("failed to embed cover art: %v", err)
	}
	return true, fmt.Sprintf("embedded baseline JPEG cover using %s", backend)
}
