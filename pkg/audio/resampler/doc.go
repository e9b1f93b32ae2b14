// Package resampler converts 16-bit PCM streams between sample rates and
// channel layouts.
//
// It supports:
//   - Sample rate conversion (e.g., 44100Hz to 11025Hz)
//   - Downmixing any channel count to mono by averaging
//   - Upmixing mono to any channel count by duplication
//   - Streaming interface via io.Reader
//
// Rate conversion uses github.com/tphakala/go-audio-resampling, a pure Go
// polyphase resampler, at its high quality preset.
//
// Example usage:
//
//	src := resampler.Format{SampleRate: 44100, Channels: 2}
//	dst := resampler.Format{SampleRate: 11025, Channels: 1}
//	r, err := resampler.New(pcm, src, dst)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	io.Copy(output, r)
package resampler
