package services

import (
	"fmt"
	"strings"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// TagSet is an ordered key -> values mapping destined for a file's metadata.
// Keys are stored uppercase and never duplicated; setting a key with no
// non-empty values is a no-op, which leaves the stored value unchanged.
type TagSet struct {
	keys   []string
	values map[string][]string
}

// NewTagSet creates an empty tag set.
func NewTagSet() *TagSet {
	return &TagSet{values: make(map[string][]string)}
}

// Set records values for key, dropping empty entries. Re-setting a key
// replaces its values but keeps its original position.
func (s *TagSet) Set(key string, values ...string) {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return
	}

	key = strings.ToUpper(key)
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = cleaned
}

// SetInt records a numeric tag, skipping zero.
func (s *TagSet) SetInt(key string, value int) {
	if value == 0 {
		return
	}
	s.Set(key, fmt.Sprint(value))
}

// Keys returns the keys in insertion order.
func (s *TagSet) Keys() []string { return s.keys }

// Values returns the recorded values for key.
func (s *TagSet) Values(key string) []string { return s.values[strings.ToUpper(key)] }

// commentValues reads all values stored under key in a Vorbis comment block.
// Vorbis comment keys compare case-insensitively.
func commentValues(cmt *flacvorbis.MetaDataBlockVorbisComment, key string) []string {
	prefix := strings.ToUpper(key) + "="
	var vals []string
	for _, comment := range cmt.Comments {
		if len(comment) >= len(prefix) && strings.EqualFold(comment[:len(prefix)], prefix) {
			vals = append(vals, comment[len(prefix):])
		}
	}
	return vals
}

// setCommentValues replaces all entries for key with the given values.
func setCommentValues(cmt *flacvorbis.MetaDataBlockVorbisComment, key string, values []string) {
	prefix := strings.ToUpper(key) + "="
	kept := cmt.Comments[:0]
	for _, comment := range cmt.Comments {
		if len(comment) < len(prefix) || !strings.EqualFold(comment[:len(prefix)], prefix) {
			kept = append(kept, comment)
		}
	}
	cmt.Comments = kept
	for _, v := range values {
		cmt.Comments = append(cmt.Comments, strings.ToUpper(key)+"="+v)
	}
}

func equalValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// findVorbisComment locates the Vorbis comment block of a parsed FLAC file.
func findVorbisComment(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int) {
	for idx, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			if cmt, err := flacvorbis.ParseFromMetaDataBlock(*block); err == nil {
				return cmt, idx
			}
		}
	}
	return nil, -1
}

// ApplyTags merges tags into the FLAC file at path. Every key is compared
// against the stored values first and skipped when unchanged, so repeated
// application performs zero writes. Returns the number of keys written.
func ApplyTags(path string, tags *TagSet) (int, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return 0, fmt.Errorf("parse flac: %w", err)
	}

	cmt, idx := findVorbisComment(f)
	if cmt == nil {
		cmt = flacvorbis.New()
	}

	changed := 0
	for _, key := range tags.Keys() {
		proposed := tags.Values(key)
		if equalValues(commentValues(cmt, key), proposed) {
			continue
		}
		setCommentValues(cmt, key, proposed)
		changed++
	}
	if changed == 0 {
		return 0, nil
	}

	block := cmt.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}
	if err := f.Save(path); err != nil {
		return changed, fmt.Errorf("save flac: %w", err)
	}
	return changed, nil
}

// ReadTagValues reads the stored values for the requested keys.
func ReadTagValues(path string, keys ...string) (map[string][]string, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse flac: %w", err)
	}
	result := make(map[string][]string, len(keys))
	cmt, _ := findVorbisComment(f)
	if cmt == nil {
		return result, nil
	}
	for _, key := range keys {
		if vals := commentValues(cmt, key); len(vals) > 0 {
			result[strings.ToUpper(key)] = vals
		}
	}
	return result, nil
}

// contributorsByRole groups contributor names, preserving encounter order of
// both roles and names.
func contributorsByRole(contributors []types.Contributor) ([]string, map[string][]string) {
	var roles []string
	grouped := make(map[string][]string)
	for _, c := range contributors {
		if c.Name == "" || c.Role == "" {
			continue
		}
		role := strings.ToUpper(strings.ReplaceAll(c.Role, " ", "_"))
		if _, seen := grouped[role]; !seen {
			roles = append(roles, role)
		}
		grouped[role] = append(grouped[role], c.Name)
	}
	return roles, grouped
}

// composerNames filters the contributor list down to composers.
func composerNames(contributors []types.Contributor) []string {
	var names []string
	for _, c := range contributors {
		if c.Role == "Composer" && c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// DeriveRating maps a 0-100 popularity score onto a 0-5 star rating.
func DeriveRating(popularity int) int {
	if popularity < 0 {
		popularity = 0
	}
	if popularity > 100 {
		popularity = 100
	}
	rating := (popularity + 10) / 20
	if rating > 5 {
		rating = 5
	}
	return rating
}

// BuildTrackTags assembles the descriptive and provenance tag set for a
// downloaded track.
func BuildTrackTags(track *types.Track, album *types.Album, stream *types.StreamDescriptor, contributors []types.Contributor, lyrics string) *TagSet {
	tags := NewTagSet()

	tags.Set("TITLE", track.DisplayTitle())
	tags.Set("ARTIST", track.ArtistNames()...)
	tags.Set("COPYRIGHT", track.Copyright)
	tags.SetInt("TRACKNUMBER", track.TrackNumber)
	tags.SetInt("DISCNUMBER", track.VolumeNumber)
	tags.Set("COMPOSER", composerNames(contributors)...)
	tags.Set("ISRC", track.ISRC)
	tags.Set("LYRICS", lyrics)

	if album != nil {
		tags.Set("ALBUM", album.Title)
		tags.Set("ALBUMARTIST", album.ArtistNames()...)
		tags.Set("DATE", album.ReleaseDate)
		tags.SetInt("DISCTOTAL", album.NumberOfVolumes)
		// The track total is only meaningful for single-disc releases;
		// per-disc counts are not in the album payload.
		if album.NumberOfVolumes <= 1 {
			tags.SetInt("TRACKTOTAL", album.NumberOfTracks)
		}
	} else {
		tags.Set("ALBUM", track.Album.Title)
	}

	// Provenance tags for later reconciliation against the catalog.
	tags.Set("TIDAL_TRACK_ID", track.ID)
	tags.Set("TIDAL_TRACK_URL", "https://tidal.com/browse/track/"+track.ID)
	if album != nil && album.ID != "" {
		tags.Set("TIDAL_ALBUM_ID", album.ID)
		tags.Set("TIDAL_ALBUM_URL", "https://tidal.com/browse/album/"+album.ID)
	}
	if stream != nil {
		tags.Set("TIDAL_CODEC", stream.Codec)
		tags.Set("TIDAL_SOUND_QUALITY", stream.SoundQuality)
		tags.SetInt("TIDAL_BIT_DEPTH", stream.BitDepth)
		tags.SetInt("TIDAL_SAMPLE_RATE", stream.SampleRate)
	}
	if track.Popularity > 0 {
		tags.SetInt("TIDAL_TRACK_POPULARITY", track.Popularity)
		tags.SetInt("RB_RATING", DeriveRating(track.Popularity))
	}
	if track.ReplayGain != 0 {
		tags.Set("REPLAYGAIN_TRACK_GAIN", fmt.Sprintf("%.2f dB", track.ReplayGain))
	}
	if track.Peak != 0 {
		tags.Set("REPLAYGAIN_TRACK_PEAK", fmt.Sprintf("%.6f", track.Peak))
	}

	roles, grouped := contributorsByRole(contributors)
	for _, role := range roles {
		tags.Set("TIDAL_CONTRIBUTOR_"+role, grouped[role]...)
	}

	return tags
}
