package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSniffContainer tests container classification from leading bytes
func TestSniffContainer(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected Container
	}{
		{
			name:     "native flac",
			header:   []byte("fLaC\x00\x00\x00\x22"),
			expected: ContainerFLAC,
		},
		{
			name:     "mp4 family container",
			header:   []byte("\x00\x00\x00\x20ftypM4A "),
			expected: ContainerMP4,
		},
		{
			name:     "ftyp at wrong offset",
			header:   []byte("ftyp\x00\x00\x00\x00"),
			expected: ContainerUnknown,
		},
		{
			name:     "truncated header",
			header:   []byte("fL"),
			expected: ContainerUnknown,
		},
		{
			name:     "empty",
			header:   nil,
			expected: ContainerUnknown,
		},
		{
			name:     "garbage",
			header:   []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00"),
			expected: ContainerUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SniffContainer(tt.header))
		})
	}
}

// TestSniffFile tests classification of on-disk files regardless of extension
func TestSniffFile(t *testing.T) {
	dir := t.TempDir()

	// A FLAC stream hiding behind an .m4a extension is still FLAC.
	misnamed := filepath.Join(dir, "track.m4a")
	require.NoError(t, os.WriteFile(misnamed, testFLACBytes(), 0644))
	assert.Equal(t, ContainerFLAC, SniffFile(misnamed))

	mp4 := filepath.Join(dir, "track.flac")
	require.NoError(t, os.WriteFile(mp4, []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), 0644))
	assert.Equal(t, ContainerMP4, SniffFile(mp4))

	assert.Equal(t, ContainerUnknown, SniffFile(filepath.Join(dir, "missing.flac")))
}
