package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

var openers = map[string]func(*os.File) (*Stream, error){
	".wav":  openWAV,
	".mp3":  openMP3,
	".flac": openFLAC,
	".ogg":  openOGG,
}

// clamp16 saturates v to the int16 range.
func clamp16(v int) int16 {
	return int16(max(-32768, min(32767, v)))
}

// --- WAV ---

type wavReader struct {
	src      io.Reader
	bitDepth int
	raw      []byte
	pending  []byte
}

func openWAV(f *os.File) (*Stream, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	// FwdToPCM positions the file at the start of the data chunk
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("read WAV header: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	frameSize := int64(channels * bitDepth / 8)
	pcmLen := dec.PCMLen()

	r := &wavReader{
		src:      io.LimitReader(f, pcmLen),
		bitDepth: bitDepth,
	}
	return &Stream{
		r:          r,
		sampleRate: int(dec.SampleRate),
		channels:   channels,
		frames:     pcmLen / frameSize,
	}, nil
}

func (r *wavReader) Read(p []byte) (int, error) {
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	width := r.bitDepth / 8
	samples := max(len(p)/2, 1)
	if cap(r.raw) < samples*width {
		r.raw = make([]byte, samples*width)
	}
	n, err := io.ReadFull(r.src, r.raw[:samples*width])
	got := n / width
	if got == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	out := make([]byte, got*2)
	for i := range got {
		in := r.raw[i*width:]
		var v int
		switch r.bitDepth {
		case 8:
			// 8-bit WAV is unsigned
			v = (int(in[0]) - 128) << 8
		case 16:
			v = int(int16(binary.LittleEndian.Uint16(in)))
		case 24:
			s := int32(in[0]) | int32(in[1])<<8 | int32(in[2])<<16
			if s&0x800000 != 0 {
				s |= ^0xFFFFFF
			}
			v = int(s >> 8)
		case 32:
			v = int(int32(binary.LittleEndian.Uint32(in)) >> 16)
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(clamp16(v)))
	}

	written := copy(p, out)
	r.pending = out[written:]
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return written, err
}

// --- MP3 ---

func openMP3(f *os.File) (*Stream, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	// go-mp3 always produces 16-bit stereo
	return &Stream{
		r:          dec,
		sampleRate: dec.SampleRate(),
		channels:   2,
		frames:     dec.Length() / 4,
	}, nil
}

// --- FLAC ---

type flacReader struct {
	stream   *flac.Stream
	channels int
	bps      int
	pending  []byte
}

func openFLAC(f *os.File) (*Stream, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, err
	}
	info := stream.Info
	r := &flacReader{
		stream:   stream,
		channels: int(info.NChannels),
		bps:      int(info.BitsPerSample),
	}
	frames := int64(info.NSamples)
	if frames == 0 {
		frames = -1
	}
	return &Stream{
		r:          r,
		sampleRate: int(info.SampleRate),
		channels:   r.channels,
		frames:     frames,
	}, nil
}

func (r *flacReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		frame, err := r.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		n := int(frame.Subframes[0].NSamples)
		out := make([]byte, n*r.channels*2)
		for i := range n {
			for ch := range r.channels {
				v := int(frame.Subframes[ch].Samples[i])
				switch {
				case r.bps > 16:
					v >>= r.bps - 16
				case r.bps < 16:
					v <<= 16 - r.bps
				}
				binary.LittleEndian.PutUint16(out[(i*r.channels+ch)*2:], uint16(clamp16(v)))
			}
		}
		r.pending = out
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// --- OGG Vorbis ---

type oggReader struct {
	reader  *oggvorbis.Reader
	floats  []float32
	pending []byte
}

func openOGG(f *os.File) (*Stream, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, err
	}
	frames := reader.Length()
	if frames <= 0 {
		frames = -1
	}
	return &Stream{
		r:          &oggReader{reader: reader},
		sampleRate: reader.SampleRate(),
		channels:   reader.Channels(),
		frames:     frames,
	}, nil
}

func (r *oggReader) Read(p []byte) (int, error) {
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	want := max(len(p)/2, 1)
	if cap(r.floats) < want {
		r.floats = make([]float32, want)
	}
	n, err := r.reader.Read(r.floats[:want])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	out := make([]byte, n*2)
	for i, s := range r.floats[:n] {
		s = max(-1, min(1, s))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*32767)))
	}
	written := copy(p, out)
	r.pending = out[written:]
	return written, err
}
