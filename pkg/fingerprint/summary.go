package fingerprint

import "github.com/haivivi/audioprint/pkg/audio/chroma"

// Summary is the printable result of fingerprinting one stream.
type Summary struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Hash        string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Frames      int    `json:"frames" yaml:"frames"`
	Width       int    `json:"width" yaml:"width"`
}

// Summarize quantizes img and, when h is non-nil and matches the image
// width, hashes it.
func Summarize(img *chroma.FeatureImage, h *Hasher) (Summary, error) {
	fp, err := FromImage(img)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Fingerprint: fp.String(),
		Frames:      img.NumRows(),
		Width:       img.Width(),
	}
	if h != nil && h.Dim() == img.Width() {
		s.Hash = h.Hash(img)
	}
	return s, nil
}
