package services

import (
	"bytes"
	"os"
)

// Container is the actual on-disk container format of a media file, as
// determined by its leading bytes. The file extension is only a hint about
// the desired output and never trusted for classification.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerFLAC
	ContainerMP4
)

func (c Container) String() string {
	switch c {
	case ContainerFLAC:
		return "flac"
	case ContainerMP4:
		return "mp4"
	default:
		return "unknown"
	}
}

var (
	flacMagic = []byte("fLaC")
	ftypTag   = []byte("ftyp")
)

// SniffContainer classifies the leading bytes of a media file. FLAC carries
// the fLaC magic at offset 0; MP4-family containers carry ftyp at offset 4.
func SniffContainer(header []byte) Container {
	if len(header) >= 4 && bytes.Equal(header[:4], flacMagic) {
		return ContainerFLAC
	}
	if len(header) >= 8 && bytes.Equal(header[4:8], ftypTag) {
		return ContainerMP4
	}
	return ContainerUnknown
}

// SniffFile reads the first 12 bytes of path and classifies them. Unreadable
// or truncated files classify as Unknown.
func SniffFile(path string) Container {
	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return ContainerUnknown
	}
	return SniffContainer(header[:n])
}
