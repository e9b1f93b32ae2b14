package decode

import (
	"fmt"
	"io"

	"github.com/haivivi/audioprint/pkg/audio/resampler"
)

// Resample returns a mono stream at rate reading from s. The returned stream
// takes ownership of s. If s is already mono at rate it is returned as is.
func Resample(s *Stream, rate int) (*Stream, error) {
	if s.sampleRate == rate && s.channels == 1 {
		return s, nil
	}
	src := resampler.Format{SampleRate: s.sampleRate, Channels: s.channels}
	r, err := resampler.New(s.r, src, resampler.Mono(rate))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	frames := s.frames
	if frames > 0 {
		frames = frames * int64(rate) / int64(s.sampleRate)
	}
	return &Stream{
		r:          r,
		sampleRate: rate,
		channels:   1,
		frames:     frames,
		closers:    append([]io.Closer{r}, s.closers...),
	}, nil
}
