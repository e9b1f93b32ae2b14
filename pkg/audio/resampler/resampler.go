//go:build !js

package resampler

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler is a PCM stream converted to another format. It must be closed
// with Close to release the filter state.
type Resampler interface {
	io.ReadCloser
	CloseWithError(error) error
}

// Converter reads 16-bit PCM in srcFmt from an io.Reader and yields it in
// dstFmt.
//
// At end of input the rate converter's filter delay is flushed, so the
// output lasts as long as the input: round(inFrames × dstRate / srcRate)
// frames.
type Converter struct {
	srcFmt Format
	dstFmt Format
	src    io.Reader

	mu        sync.Mutex
	readBuf   []byte
	leftover  []byte
	closeErr  error
	resampler resampling.Resampler

	// Frames fed to and produced by resampler, used to size the tail.
	inFrames  int64
	outFrames int64
	drained   bool
}

// New creates a Resampler from srcFmt to dstFmt. Channel conversion is
// limited to identical layouts, N→mono and mono→N.
func New(src io.Reader, srcFmt, dstFmt Format) (Resampler, error) {
	if err := srcFmt.validate(); err != nil {
		return nil, err
	}
	if err := dstFmt.validate(); err != nil {
		return nil, err
	}
	if srcFmt.Channels != dstFmt.Channels && srcFmt.Channels != 1 && dstFmt.Channels != 1 {
		return nil, fmt.Errorf("resampler: cannot convert %d channels to %d", srcFmt.Channels, dstFmt.Channels)
	}

	c := &Converter{
		srcFmt: srcFmt,
		dstFmt: dstFmt,
		src:    newFrameReader(src, srcFmt.frameBytes()),
	}
	if srcFmt.SampleRate != dstFmt.SampleRate {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(srcFmt.SampleRate),
			OutputRate: float64(dstFmt.SampleRate),
			Channels:   dstFmt.Channels,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create %s -> %s: %w", srcFmt, dstFmt, err)
		}
		c.resampler = r
	}
	return c, nil
}

// Read copies converted audio into p, always a whole number of dstFmt
// frames. It is not safe for concurrent use.
func (c *Converter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	fb := c.dstFmt.frameBytes()
	if len(p) < fb {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fb*fb]

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	if c.closeErr != nil {
		return 0, c.closeErr
	}
	return c.readAndConvert(p)
}

func (c *Converter) readAndConvert(p []byte) (int, error) {
	dstFrames := len(p) / c.dstFmt.frameBytes()
	srcFrames := dstFrames
	if c.resampler != nil {
		ratio := float64(c.srcFmt.SampleRate) / float64(c.dstFmt.SampleRate)
		srcFrames = int(float64(dstFrames)*ratio) + 4
	}

	need := srcFrames * c.srcFmt.frameBytes()
	if cap(c.readBuf) < need {
		c.readBuf = make([]byte, need)
	}
	rn, readErr := c.src.Read(c.readBuf[:need])

	var out []byte
	if rn > 0 {
		mixed := convertChannels(c.readBuf[:rn], c.srcFmt.Channels, c.dstFmt.Channels)
		if c.resampler == nil {
			out = int16sToBytes(mixed)
		} else {
			output, err := c.process(mixed)
			if err != nil {
				return 0, err
			}
			out = floatsToBytes(output)
		}
	}
	if readErr == io.EOF && c.resampler != nil && !c.drained {
		tail, err := c.drain()
		if err != nil {
			return 0, err
		}
		out = append(out, floatsToBytes(tail)...)
	}
	if len(out) == 0 {
		return 0, readErr
	}

	out = out[:len(out)/c.dstFmt.frameBytes()*c.dstFmt.frameBytes()]
	n := copy(p, out)
	if len(out) > n {
		c.leftover = append(c.leftover, out[n:]...)
	}
	if n == 0 && readErr != nil {
		return 0, readErr
	}
	if len(c.leftover) > 0 && readErr == io.EOF {
		// report EOF once the leftover is drained
		c.closeErr = io.EOF
		return n, nil
	}
	return n, readErr
}

// process runs interleaved samples through the rate converter.
func (c *Converter) process(mixed []int16) ([]float64, error) {
	input := make([]float64, len(mixed))
	for i, s := range mixed {
		input[i] = float64(s) / 32768.0
	}
	output, err := c.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	ch := c.dstFmt.Channels
	c.inFrames += int64(len(input) / ch)
	c.outFrames += int64(len(output) / ch)
	return output, nil
}

// drainChunks bounds the silence pushed through the filter at EOF, in
// 50 ms chunks.
const drainChunks = 20

// drain flushes the filter delay at EOF. Silence is fed until the output
// covers the input duration, and the result is trimmed to exactly that.
func (c *Converter) drain() ([]float64, error) {
	c.drained = true
	ch := c.dstFmt.Channels
	want := int64(math.Round(float64(c.inFrames) * float64(c.dstFmt.SampleRate) / float64(c.srcFmt.SampleRate)))
	missing := want - c.outFrames
	if missing <= 0 {
		return nil, nil
	}

	silence := make([]float64, max(c.srcFmt.SampleRate/20, 1)*ch)
	var tail []float64
	for range drainChunks {
		out, err := c.resampler.Process(silence)
		if err != nil {
			return nil, fmt.Errorf("resampler: drain: %w", err)
		}
		tail = append(tail, out...)
		if int64(len(tail)/ch) >= missing {
			break
		}
	}
	tail = tail[:min(len(tail)/ch, int(missing))*ch]
	c.outFrames += int64(len(tail) / ch)
	return tail, nil
}

// Close releases the filter state. Subsequent Read calls return
// io.ErrClosedPipe.
func (c *Converter) Close() error {
	return c.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError releases the filter state. Subsequent Read calls return
// err once buffered output is drained.
func (c *Converter) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr == nil || c.closeErr == io.EOF {
		c.closeErr = err
	}
	c.resampler = nil
	return nil
}

// convertChannels decodes little-endian frames of srcCh channels into
// interleaved samples of dstCh channels. Downmixing averages with truncation
// toward zero.
func convertChannels(b []byte, srcCh, dstCh int) []int16 {
	frames := len(b) / (2 * srcCh)
	out := make([]int16, frames*dstCh)
	for f := range frames {
		in := b[f*2*srcCh:]
		switch {
		case srcCh == dstCh:
			for ch := range dstCh {
				out[f*dstCh+ch] = int16(binary.LittleEndian.Uint16(in[2*ch:]))
			}
		case dstCh == 1:
			var sum int32
			for ch := range srcCh {
				sum += int32(int16(binary.LittleEndian.Uint16(in[2*ch:])))
			}
			out[f] = int16(sum / int32(srcCh))
		default:
			s := int16(binary.LittleEndian.Uint16(in))
			for ch := range dstCh {
				out[f*dstCh+ch] = s
			}
		}
	}
	return out
}

func int16sToBytes(s []int16) []byte {
	b := make([]byte, 2*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func floatsToBytes(f []float64) []byte {
	b := make([]byte, 2*len(f))
	for i, s := range f {
		var v int16
		switch {
		case s > 1.0:
			v = 32767
		case s < -1.0:
			v = -32768
		default:
			v = int16(s * 32767.0)
		}
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}
