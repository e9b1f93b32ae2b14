package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
	"github.com/haivivi/audioprint/pkg/audio/decode"
	"github.com/haivivi/audioprint/pkg/catalog"
	"github.com/haivivi/audioprint/pkg/cli"
	"github.com/haivivi/audioprint/pkg/fft"
	"github.com/haivivi/audioprint/pkg/fingerprint"
	"github.com/haivivi/audioprint/pkg/kv"
	"github.com/haivivi/audioprint/pkg/storage"
)

func (a *app) fftPool() (*fft.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	engine, err := fft.EngineByName(a.cfg.Engine)
	if err != nil {
		return nil, err
	}
	a.pool = fft.NewPool(engine, fft.WithLogger(a.logger))
	return a.pool, nil
}

func (a *app) newPipeline() (*chroma.Pipeline, error) {
	pool, err := a.fftPool()
	if err != nil {
		return nil, err
	}
	mode, err := chroma.ParseMode(a.cfg.Mode)
	if err != nil {
		return nil, err
	}
	if mode == chroma.ModeSpectrogram && a.cfg.Bands > fingerprint.MaxWidth {
		return nil, fmt.Errorf("bands %d exceeds the fingerprint width limit %d", a.cfg.Bands, fingerprint.MaxWidth)
	}
	return chroma.New(mode, a.cfg.Bands,
		chroma.WithPool(pool),
		chroma.WithInterpolation(a.cfg.Interpolate),
		chroma.WithLogger(a.logger),
	)
}

func (a *app) hasher(width int) *fingerprint.Hasher {
	bits := a.cfg.HashBits
	if bits <= 0 {
		bits = fingerprint.DefaultHashBits
	}
	return fingerprint.NewHasher(width, bits, fingerprint.DefaultSeed)
}

// analysis is one decoded and analysed file.
type analysis struct {
	Path       string
	Tags       decode.Tags
	Duration   time.Duration
	SampleRate int
	Image      *chroma.FeatureImage
}

func (a *app) analyze(ctx context.Context, path string) (*analysis, error) {
	tags, err := decode.ReadTags(path)
	if err != nil {
		a.logger.Warn("tags unreadable", "file", path, "error", err)
		base := filepath.Base(path)
		tags = decode.Tags{Title: strings.TrimSuffix(base, filepath.Ext(base))}
	}

	s, err := decode.Open(path)
	if err != nil {
		return nil, err
	}
	duration := s.Duration()
	if rate := a.cfg.SampleRate; rate > 0 && s.SampleRate() != rate {
		rs, err := decode.Resample(s, rate)
		if err != nil {
			s.Close()
			return nil, err
		}
		s = rs
	}
	defer s.Close()

	p, err := a.newPipeline()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	img, err := p.Compute(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.Debug("analysed", "file", path, "rows", img.NumRows(), "took", time.Since(start))
	return &analysis{
		Path:       path,
		Tags:       tags,
		Duration:   duration,
		SampleRate: s.SampleRate(),
		Image:      img,
	}, nil
}

// isAudioFile reports whether arg names an existing file in a supported
// format.
func isAudioFile(arg string) bool {
	if !slices.Contains(decode.Formats(), strings.ToLower(filepath.Ext(arg))) {
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// resolveFingerprint accepts an audio file or a fingerprint string.
func (a *app) resolveFingerprint(ctx context.Context, arg string) (*fingerprint.Fingerprint, error) {
	if isAudioFile(arg) {
		an, err := a.analyze(ctx, arg)
		if err != nil {
			return nil, err
		}
		return fingerprint.FromImage(an.Image)
	}
	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return nil, fmt.Errorf("%q is neither an audio file nor a fingerprint: %w", arg, err)
	}
	return fp, nil
}

func (a *app) openCatalog() (*catalog.Catalog, func() error, error) {
	var store kv.Store
	switch dir := a.cfg.Catalog; dir {
	case "":
		return nil, nil, errors.New("no catalog configured; run 'audioprint config set catalog <dir>'")
	case cli.MemoryCatalog:
		store = kv.NewMemory(nil)
	default:
		b, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: a.logger})
		if err != nil {
			return nil, nil, err
		}
		store = b
	}
	c := catalog.New(catalog.Config{Store: store, Logger: a.logger})
	return c, store.Close, nil
}

func (a *app) openStorage(ctx context.Context) (storage.FileStore, error) {
	return storage.Open(ctx, a.cfg.Storage)
}
