// Package decode opens audio files and exposes them as 16-bit interleaved
// PCM streams that a chroma.Pipeline can consume.
//
// Supported containers, chosen by file extension:
//
//	.wav   go-audio/wav (8, 16, 24 and 32-bit integer PCM)
//	.mp3   hajimehoshi/go-mp3 (always stereo)
//	.flac  mewkiz/flac
//	.ogg   jfreymuth/oggvorbis
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned by Open for unknown file extensions.
	ErrUnsupported = errors.New("decode: unsupported format")

	// ErrChannels is returned by Decode when the channel count is outside
	// [1, MaxChannels].
	ErrChannels = errors.New("decode: invalid channel count")
)

// MaxChannels is the widest interleaved layout Decode accepts.
const MaxChannels = 64

// DefaultChunkFrames is the number of sample frames pushed per consume call.
const DefaultChunkFrames = 4096

// Stream is a source of 16-bit little-endian interleaved PCM.
type Stream struct {
	r          io.Reader
	sampleRate int
	channels   int
	frames     int64 // -1 when unknown
	closers    []io.Closer
}

// NewStream wraps raw PCM from r. The caller keeps ownership of r.
func NewStream(r io.Reader, sampleRate, channels int) *Stream {
	return &Stream{r: r, sampleRate: sampleRate, channels: channels, frames: -1}
}

// Open decodes the file at path. The returned stream owns the file; close it
// when done.
func Open(path string) (*Stream, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := openers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	s, err := open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: %s: %w", filepath.Base(path), err)
	}
	s.closers = append(s.closers, f)
	return s, nil
}

// Formats returns the supported file extensions.
func Formats() []string {
	return []string{".flac", ".mp3", ".ogg", ".wav"}
}

// SampleRate returns the sample rate in Hz.
func (s *Stream) SampleRate() int { return s.sampleRate }

// Channels returns the interleaved channel count.
func (s *Stream) Channels() int { return s.channels }

// Frames returns the total number of sample frames, or -1 if unknown.
func (s *Stream) Frames() int64 { return s.frames }

// Duration returns the stream length, or 0 if unknown.
func (s *Stream) Duration() time.Duration {
	if s.frames < 0 || s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate)
}

// Read reads raw PCM bytes.
func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Decode reads the stream to the end and passes consecutive chunks of
// samples to consume. The chunk slice is reused between calls and must not
// be retained. Decode stops at the first consume error and checks ctx
// between chunks.
func (s *Stream) Decode(ctx context.Context, consume func([]int16) error) error {
	if s.channels < 1 || s.channels > MaxChannels {
		return fmt.Errorf("%w: %d", ErrChannels, s.channels)
	}
	buf := make([]byte, DefaultChunkFrames*s.channels*2)
	samples := make([]int16, len(buf)/2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(s.r, buf)
		if k := n / 2; k > 0 {
			for i := range k {
				samples[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
			}
			if cerr := consume(samples[:k]); cerr != nil {
				return cerr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("decode: read pcm: %w", err)
		}
	}
}

// Close releases the underlying decoders and file, innermost first.
func (s *Stream) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
