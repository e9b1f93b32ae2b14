package resampler

import "fmt"

// Format describes a 16-bit signed little-endian PCM layout.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 11025).
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Mono returns a single-channel format at rate.
func Mono(rate int) Format {
	return Format{SampleRate: rate, Channels: 1}
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("resampler: invalid format %+v", f)
	}
	return nil
}

// frameBytes is the size of one sample frame across all channels.
func (f Format) frameBytes() int {
	return 2 * f.Channels
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}
