package services

import (
	"os/exec"
	"sync"
)

// Capabilities is the process-wide, write-once record of which external
// tools are present. Probes run once under the sync.Once guard; afterwards
// the fields are read concurrently without synchronization.
type Capabilities struct {
	once sync.Once

	ffmpeg   bool
	ffprobe  bool
	metaflac bool
}

func (c *Capabilities) probe() {
	c.once.Do(func() {
		_, err := exec.LookPath("ffmpeg")
		c.ffmpeg = err == nil
		_, err = exec.LookPath("ffprobe")
		c.ffprobe = err == nil
		_, err = exec.LookPath("metaflac")
		c.metaflac = err == nil
	})
}

// HasFFmpeg reports whether the ffmpeg binary is on PATH.
func (c *Capabilities) HasFFmpeg() bool {
	c.probe()
	return c.ffmpeg
}

// HasFFprobe reports whether the ffprobe binary is on PATH.
func (c *Capabilities) HasFFprobe() bool {
	c.probe()
	return c.ffprobe
}

// HasMetaflac reports whether the metaflac binary is on PATH.
func (c *Capabilities) HasMetaflac() bool {
	c.probe()
	return c.metaflac
}

// DetectCapabilities returns a capability set shared by all components of
// one process.
func DetectCapabilities() *Capabilities {
	return &Capabilities{}
}

// NewCapabilities returns a capability set with fixed answers, bypassing
// the PATH probe; used by tests.
func NewCapabilities(ffmpeg, ffprobe, metaflac bool) *Capabilities {
	c := &Capabilities{}
	c.once.Do(func() {
		c.ffmpeg = ffmpeg
		c.ffprobe = ffprobe
		c.metaflac = metaflac
	})
	return c
}
