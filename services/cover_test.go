package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts metaflac and ffmpeg invocations for cover tests. The
// JPEG handed to --import-picture-from is captured at call time because it
// lives in the normalizer's temporary directory.
type fakeRunner struct {
	listOutput   string
	exportErr    error
	calls        []string
	importedJPEG []byte
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	r.calls = append(r.calls, call)

	switch {
	case strings.Contains(call, "--list"):
		return []byte(r.listOutput), nil
	case strings.Contains(call, "--export-picture-to="):
		if r.exportErr != nil {
			return nil, r.exportErr
		}
		return nil, nil
	default:
		for _, arg := range args {
			if spec, ok := strings.CutPrefix(arg, "--import-picture-from=3|image/jpeg|||"); ok {
				r.importedJPEG, _ = os.ReadFile(spec)
			}
		}
		return nil, nil
	}
}

func (r *fakeRunner) sawCall(substr string) bool {
	for _, call := range r.calls {
		if strings.Contains(call, substr) {
			return true
		}
	}
	return false
}

// writeTestImage writes a PNG larger than the pixel bound.
func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

const compliantListOutput = `METADATA block #2
  type: 6 (PICTURE)
  is last: false
  length: 51234
  type: 3 (Cover (front))
  MIME type: image/jpeg
  description:
  width: 1200
  height: 1200
`

const oversizedListOutput = `METADATA block #2
  type: 6 (PICTURE)
  type: 3 (Cover (front))
  MIME type: image/png
  width: 3000
  height: 3000
`

// TestEnsureToolsUnavailable tests the inert path without metaflac
func TestEnsureToolsUnavailable(t *testing.T) {
	path := writeTestFLAC(t, t.TempDir(), "track.flac")
	n := NewCoverNormalizer(NewCapabilities(false, false, false))

	ok, status := n.Ensure(context.Background(), path, nil)
	assert.False(t, ok)
	assert.Equal(t, ErrCoverToolsUnavailable.Error(), status)
}

// TestEnsureNotFLAC tests rejection of non-FLAC targets
func TestEnsureNotFLAC(t *testing.T) {
	n := NewCoverNormalizer(NewCapabilities(false, false, true))
	ok, status := n.Ensure(context.Background(), "/tmp/track.m4a", nil)
	assert.False(t, ok)
	assert.Equal(t, "target is not a FLAC file", status)
}

// TestEnsureAlreadyCompliant tests the short-circuit on a good cover
func TestEnsureAlreadyCompliant(t *testing.T) {
	path := writeTestFLAC(t, t.TempDir(), "track.flac")
	runner := &fakeRunner{listOutput: compliantListOutput}
	n := NewCoverNormalizer(NewCapabilities(false, false, true)).WithRunner(runner)

	ok, status := n.Ensure(context.Background(), path, nil)
	assert.True(t, ok)
	assert.Equal(t, "cover art already meets baseline JPEG requirements", status)
	assert.False(t, runner.sawCall("--import-picture-from"))
}

// TestEnsureExistingFrontCoverPreserved tests that a non-compliant existing
// front cover is left alone
func TestEnsureExistingFrontCoverPreserved(t *testing.T) {
	path := writeTestFLAC(t, t.TempDir(), "track.flac")
	runner := &fakeRunner{listOutput: oversizedListOutput}
	n := NewCoverNormalizer(NewCapabilities(false, false, true)).WithRunner(runner)

	ok, status := n.Ensure(context.Background(), path, nil)
	assert.True(t, ok)
	assert.Equal(t, "cover art already present in FLAC metadata", status)
	assert.False(t, runner.sawCall("--remove"))
	assert.False(t, runner.sawCall("--import-picture-from"))
}

// TestEnsureFolderCover tests sourcing art from a sibling image file
func TestEnsureFolderCover(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFLAC(t, dir, "track.flac")
	writeTestImage(t, filepath.Join(dir, "cover.jpg"), 2000, 2000)

	runner := &fakeRunner{exportErr: fmt.Errorf("no picture to export")}
	n := NewCoverNormalizer(NewCapabilities(false, false, true)).WithRunner(runner)

	ok, status := n.Ensure(context.Background(), path, nil)
	assert.True(t, ok)
	assert.Equal(t, "embedded baseline JPEG cover using image", status)
	assert.True(t, runner.sawCall("--remove --block-type=PICTURE"))
	assert.True(t, runner.sawCall("--import-picture-from=3|image/jpeg|||"))
}

// TestEnsureFetchedCover tests the remote fetch fallback and the pixel bound
func TestEnsureFetchedCover(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFLAC(t, dir, "track.flac")

	runner := &fakeRunner{exportErr: fmt.Errorf("no picture to export")}
	n := NewCoverNormalizer(NewCapabilities(false, false, true)).WithRunner(runner)
	n.MaxPixels = 400

	var fetched string
	fetch := func(destDir string) (string, error) {
		fetched = filepath.Join(destDir, "remote.png")
		writeTestImage(t, fetched, 1000, 500)
		return fetched, nil
	}

	ok, status := n.Ensure(context.Background(), path, fetch)
	require.True(t, ok, status)
	assert.Equal(t, "embedded baseline JPEG cover using image", status)

	// The JPEG handed to metaflac respects the pixel bound.
	require.NotEmpty(t, runner.importedJPEG)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(runner.importedJPEG))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 400)
	assert.LessOrEqual(t, cfg.Height, 400)
}

// TestEnsureNoArtAnywhere tests the no-art failure status
func TestEnsureNoArtAnywhere(t *testing.T) {
	path := writeTestFLAC(t, t.TempDir(), "track.flac")
	runner := &fakeRunner{exportErr: fmt.Errorf("no picture to export")}
	n := NewCoverNormalizer(NewCapabilities(false, false, true)).WithRunner(runner)

	ok, status := n.Ensure(context.Background(), path, nil)
	assert.False(t, ok)
	assert.Equal(t, ErrNoCoverArt.Error(), status)
}
