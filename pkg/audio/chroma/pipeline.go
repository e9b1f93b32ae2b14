package chroma

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haivivi/audioprint/pkg/fft"
)

// Mode selects the feature layout produced by a Pipeline.
type Mode string

const (
	ModeChroma      Mode = "chroma"
	ModeSpectrogram Mode = "spectrogram"
)

// ParseMode validates a mode name. An empty name selects ModeChroma.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeChroma:
		return ModeChroma, nil
	case ModeSpectrogram:
		return ModeSpectrogram, nil
	default:
		return "", fmt.Errorf("chroma: unknown mode %q", s)
	}
}

// Source delivers interleaved 16-bit PCM to a consumer. Decode calls consume
// with consecutive chunks until the stream ends, consume fails, or ctx is
// done.
type Source interface {
	SampleRate() int
	Channels() int
	Decode(ctx context.Context, consume func([]int16) error) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPool sets the FFT pool. Default: fft.Default().
func WithPool(p *fft.Pool) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.pool = p
		}
	}
}

// WithInterpolation splits each spectrum bin between its two nearest pitch
// classes. Chromagram only.
func WithInterpolation(on bool) Option {
	return func(pl *Pipeline) {
		pl.interpolate = on
	}
}

// WithThreshold overrides the normalizer zeroing threshold.
func WithThreshold(t float64) Option {
	return func(pl *Pipeline) {
		if t >= 0 {
			pl.threshold = t
		}
	}
}

// WithFraming overrides the frame size and hop. Default: FrameSize, Hop.
func WithFraming(size, hop int) Option {
	return func(pl *Pipeline) {
		pl.frameSize = size
		pl.hop = hop
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// Pipeline drives PCM through the stage chain and collects the output rows
// into a FeatureImage.
//
// A chromagram runs Framer → Chroma → Filter → Normalizer. A spectrogram
// runs Framer → Bands.
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	mode        Mode
	bands       int
	interpolate bool
	threshold   float64
	frameSize   int
	hop         int
	pool        *fft.Pool
	logger      *slog.Logger

	sampleRate int
	channels   int
	framer     *Framer
	stages     []Stage
	width      int
	image      *FeatureImage

	mono  []float64
	carry []int16
}

func newPipeline(mode Mode, bands int, opts []Option) *Pipeline {
	p := &Pipeline{
		mode:      mode,
		bands:     bands,
		threshold: DefaultThreshold,
		frameSize: FrameSize,
		hop:       Hop,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool == nil {
		p.pool = fft.Default()
	}
	return p
}

// NewChromagram creates a pipeline producing 12-wide chroma images.
func NewChromagram(opts ...Option) *Pipeline {
	return newPipeline(ModeChroma, NumPitchClasses, opts)
}

// NewSpectrogram creates a pipeline producing images of the given number of
// linear bands. A non-positive count selects DefaultBands.
func NewSpectrogram(bands int, opts ...Option) *Pipeline {
	if bands < 1 {
		bands = DefaultBands
	}
	return newPipeline(ModeSpectrogram, bands, opts)
}

// New creates a pipeline for mode. bands is used by ModeSpectrogram only.
func New(mode Mode, bands int, opts ...Option) (*Pipeline, error) {
	switch mode {
	case "", ModeChroma:
		return NewChromagram(opts...), nil
	case ModeSpectrogram:
		return NewSpectrogram(bands, opts...), nil
	default:
		return nil, fmt.Errorf("chroma: unknown mode %q", mode)
	}
}

// Mode returns the pipeline mode.
func (p *Pipeline) Mode() Mode { return p.mode }

// Width returns the row width of the images this pipeline produces.
func (p *Pipeline) Width() int {
	if p.mode == ModeChroma {
		return NumPitchClasses
	}
	return p.bands
}

// Reset prepares the pipeline for a stream with the given format and drops
// all buffered state.
func (p *Pipeline) Reset(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, sampleRate, channels)
	}
	p.sampleRate = sampleRate
	p.channels = channels
	p.framer = NewFramer(p.pool, p.frameSize, p.hop)

	switch p.mode {
	case ModeSpectrogram:
		p.stages = []Stage{NewBands(sampleRate, p.frameSize, p.bands)}
	default:
		p.stages = []Stage{
			NewChroma(sampleRate, p.frameSize, p.interpolate),
			NewFilter(),
			NewNormalizer(p.threshold),
		}
	}
	p.width = p.Width()
	p.image = NewFeatureImage(p.width)
	p.carry = p.carry[:0]

	p.logger.Debug("chroma: pipeline reset",
		"mode", p.mode, "rate", sampleRate, "channels", channels, "width", p.width)
	return nil
}

// Consume feeds interleaved samples. Channels are averaged into mono; an
// incomplete trailing sample frame is kept for the next call.
func (p *Pipeline) Consume(samples []int16) error {
	if p.framer == nil {
		return ErrNotStarted
	}
	ch := p.channels
	p.mono = p.mono[:0]

	if len(p.carry) > 0 {
		need := ch - len(p.carry)
		if len(samples) < need {
			p.carry = append(p.carry, samples...)
			return nil
		}
		p.carry = append(p.carry, samples[:need]...)
		p.mono = append(p.mono, downmix(p.carry))
		p.carry = p.carry[:0]
		samples = samples[need:]
	}

	whole := len(samples) / ch * ch
	for i := 0; i < whole; i += ch {
		p.mono = append(p.mono, downmix(samples[i:i+ch]))
	}
	p.carry = append(p.carry, samples[whole:]...)

	return p.feed(p.mono)
}

func downmix(frame []int16) float64 {
	if len(frame) == 1 {
		return float64(frame[0])
	}
	sum := 0
	for _, s := range frame {
		sum += int(s)
	}
	return float64(sum) / float64(len(frame))
}

func (p *Pipeline) feed(mono []float64) error {
	for len(mono) > 0 {
		n := p.framer.Fill(mono)
		mono = mono[n:]
		if !p.framer.Full() {
			break
		}
		spectrum, err := p.framer.Transform()
		if err != nil {
			return fmt.Errorf("chroma: transform frame: %w", err)
		}
		p.run(spectrum)
	}
	return nil
}

func (p *Pipeline) run(v []float64) {
	for _, s := range p.stages {
		out, ok := s.Process(v)
		if !ok {
			return
		}
		v = out
	}
	p.image.AddRow(v)
}

// Flush ends the current stream and returns its image. Buffered samples
// shorter than one frame are dropped. The pipeline stays configured for the
// same format and starts a new, empty image.
func (p *Pipeline) Flush() *FeatureImage {
	if p.framer == nil {
		return NewFeatureImage(p.Width())
	}
	if dropped := p.framer.Buffered(); dropped > 0 {
		p.logger.Debug("chroma: dropped partial frame", "samples", dropped)
	}
	p.framer.Reset()
	for _, s := range p.stages {
		s.Reset()
	}
	p.carry = p.carry[:0]

	img := p.image
	p.image = NewFeatureImage(p.width)
	return img
}

// Compute runs src through the pipeline from a fresh state and returns the
// completed image.
func (p *Pipeline) Compute(ctx context.Context, src Source) (*FeatureImage, error) {
	if err := p.Reset(src.SampleRate(), src.Channels()); err != nil {
		return nil, err
	}
	if err := src.Decode(ctx, p.Consume); err != nil {
		return nil, fmt.Errorf("chroma: decode: %w", err)
	}
	img := p.Flush()
	p.logger.Debug("chroma: computed image", "rows", img.NumRows(), "width", img.Width())
	return img, nil
}
