package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
)

// writeWAV writes interleaved samples as a PCM WAV file and returns its path.
func writeWAV(t *testing.T, rate, channels, bitDepth int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func collect(t *testing.T, s *Stream) []int16 {
	t.Helper()
	var out []int16
	err := s.Decode(context.Background(), func(chunk []int16) error {
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return out
}

func TestOpen_WAV16(t *testing.T) {
	data := []int{0, 1, -1, 32767, -32768, 1000, -1000, 42}
	path := writeWAV(t, 8000, 2, 16, data)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	if s.SampleRate() != 8000 || s.Channels() != 2 || s.Frames() != 4 {
		t.Errorf("format = %d Hz, %d ch, %d frames; want 8000, 2, 4",
			s.SampleRate(), s.Channels(), s.Frames())
	}
	if s.Duration() != 500*time.Microsecond {
		t.Errorf("Duration() = %v, want 500µs", s.Duration())
	}

	got := collect(t, s)
	if len(got) != len(data) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(data))
	}
	for i := range data {
		if int(got[i]) != data[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], data[i])
		}
	}
}

func TestOpen_WAV24(t *testing.T) {
	data := []int{0x123456, -0x123456, 0x7fffff}
	s, err := Open(writeWAV(t, 11025, 1, 24, data))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	got := collect(t, s)
	want := []int16{0x1234, -0x1235, 0x7fff}
	if len(got) != len(want) {
		t.Fatalf("decoded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open("song.aiff"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Open(.aiff) error = %v, want ErrUnsupported", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("Open(missing) expected error")
	}

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(bogus, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(bogus); err == nil {
		t.Error("Open(bogus.wav) expected error")
	}
}

func pcmBytes(samples []int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func TestStream_Decode(t *testing.T) {
	samples := make([]int16, DefaultChunkFrames*2+3)
	for i := range samples {
		samples[i] = int16(i)
	}
	s := NewStream(bytes.NewReader(pcmBytes(samples)), 11025, 1)

	var chunks int
	var total int
	err := s.Decode(context.Background(), func(chunk []int16) error {
		if chunk[0] != int16(total) {
			t.Errorf("chunk %d starts with %d, want %d", chunks, chunk[0], total)
		}
		chunks++
		total += len(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if chunks != 3 || total != len(samples) {
		t.Errorf("got %d chunks, %d samples; want 3, %d", chunks, total, len(samples))
	}
}

func TestStream_DecodeStops(t *testing.T) {
	data := pcmBytes(make([]int16, DefaultChunkFrames*4))

	stop := errors.New("stop")
	calls := 0
	err := NewStream(bytes.NewReader(data), 8000, 1).Decode(context.Background(), func([]int16) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Decode = %v after %d calls, want stop after 1", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = NewStream(bytes.NewReader(data), 8000, 1).Decode(ctx, func([]int16) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Decode after cancel = %v, want context.Canceled", err)
	}
}

func TestStream_DecodeInvalidChannels(t *testing.T) {
	for _, ch := range []int{0, -1, MaxChannels + 1} {
		t.Run(fmt.Sprint(ch), func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				done <- NewStream(bytes.NewReader(pcmBytes([]int16{1, 2, 3, 4})), 8000, ch).Decode(context.Background(), func([]int16) error {
					return nil
				})
			}()
			select {
			case err := <-done:
				if !errors.Is(err, ErrChannels) {
					t.Fatalf("Decode = %v, want ErrChannels", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Decode did not return")
			}
		})
	}
}

func TestResample(t *testing.T) {
	const rate = 44100
	data := make([]int, 2*rate)
	for i := 0; i < rate; i++ {
		v := int(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		data[2*i], data[2*i+1] = v, v
	}
	s, err := Open(writeWAV(t, rate, 2, 16, data))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	r, err := Resample(s, 11025)
	if err != nil {
		t.Fatalf("Resample error: %v", err)
	}
	defer r.Close()

	if r.SampleRate() != 11025 || r.Channels() != 1 || r.Frames() != 11025 {
		t.Errorf("format = %d Hz, %d ch, %d frames", r.SampleRate(), r.Channels(), r.Frames())
	}
	got := collect(t, r)
	if len(got) < 11025*85/100 || len(got) > 11025*105/100 {
		t.Errorf("decoded %d samples, want about 11025", len(got))
	}

	same, err := Resample(r, 11025)
	if err != nil || same != r {
		t.Errorf("Resample to the current format = %p, %v; want the same stream", same, err)
	}
}

func TestReadTags(t *testing.T) {
	dir := t.TempDir()
	mp3Path := filepath.Join(dir, "tagged.mp3")
	f, err := os.Create(mp3Path)
	if err != nil {
		t.Fatal(err)
	}
	tag := id3v2.NewEmptyTag()
	tag.SetTitle("Blue in Green")
	tag.SetArtist("Miles Davis")
	tag.SetAlbum("Kind of Blue")
	if _, err := tag.WriteTo(f); err != nil {
		t.Fatalf("write tag: %v", err)
	}
	f.Close()

	tags, err := ReadTags(mp3Path)
	if err != nil {
		t.Fatalf("ReadTags error: %v", err)
	}
	want := Tags{Title: "Blue in Green", Artist: "Miles Davis", Album: "Kind of Blue"}
	if tags != want {
		t.Errorf("ReadTags = %+v, want %+v", tags, want)
	}

	tags, err = ReadTags(filepath.Join(dir, "So What.flac"))
	if err != nil {
		t.Fatalf("ReadTags error: %v", err)
	}
	if tags != (Tags{Title: "So What"}) {
		t.Errorf("ReadTags fallback = %+v", tags)
	}
}

func TestStreamIsChromaSource(t *testing.T) {
	const rate = 11025
	data := make([]int, rate*2)
	for i := range data {
		data[i] = int(12000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	s, err := Open(writeWAV(t, rate, 1, 16, data))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	var src chroma.Source = s
	img, err := chroma.NewChromagram().Compute(context.Background(), src)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	if img.NumRows() == 0 || img.Width() != chroma.NumPitchClasses {
		t.Errorf("image = %d x %d", img.NumRows(), img.Width())
	}
}
