package types

import "strings"

// StreamDescriptor is the resolved, possibly short-lived description of a
// single download attempt: where the bytes live, how they are encrypted and
// what the essence inside them is. It is immutable once issued.
type StreamDescriptor struct {
	TrackID string `json:"trackId"`
	URL     string `json:"url"`
	// URLs holds segment or mirror URLs. When the stream is segmented the
	// segments must be fetched in order and concatenated.
	URLs []string `json:"urls,omitempty"`
	// EncryptionKey is the opaque provider security token. Empty means the
	// stream is served unencrypted.
	EncryptionKey string `json:"encryptionKey,omitempty"`
	Codec         string `json:"codec,omitempty"`
	SoundQuality  string `json:"soundQuality,omitempty"`
	BitDepth      int    `json:"bitDepth,omitempty"`
	SampleRate    int    `json:"sampleRate,omitempty"`
}

// IsEncrypted reports whether the stream requires decryption.
func (s *StreamDescriptor) IsEncrypted() bool {
	return strings.TrimSpace(s.EncryptionKey) != ""
}

// FlacEssence reports whether the declared codec is FLAC audio, regardless
// of the container it arrives in.
func (s *StreamDescriptor) FlacEssence() bool {
	return strings.Contains(strings.ToLower(s.Codec), "flac")
}

// Extension returns the target file extension implied by the codec.
func (s *StreamDescriptor) Extension() string {
	if s.FlacEssence() {
		return ".flac"
	}
	return ".m4a"
}
