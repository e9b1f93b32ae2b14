package decode

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// Tags is the descriptive metadata of an audio file.
type Tags struct {
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Artist string `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album  string `json:"album,omitempty" yaml:"album,omitempty"`
}

// ReadTags reads ID3v2 tags from MP3 files. When no title is tagged, or the
// file is not an MP3, the title falls back to the file name without its
// extension.
func ReadTags(path string) (Tags, error) {
	var tags Tags
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			return Tags{}, err
		}
		defer tag.Close()
		tags = Tags{
			Title:  strings.TrimSpace(tag.Title()),
			Artist: strings.TrimSpace(tag.Artist()),
			Album:  strings.TrimSpace(tag.Album()),
		}
	}
	if tags.Title == "" {
		base := filepath.Base(path)
		tags.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return tags, nil
}
